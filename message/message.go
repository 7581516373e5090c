// Package message defines the bus-level message exchanged by the TCP and etcd transports.
//
// RPCMessage is the frame body for every bus request and reply. Its Payload is
// opaque to the bus: on a request it is an encoded Request table, on a reply an
// encoded Response envelope. Contract-level errors travel inside the Payload;
// Status only reports failures of the bus itself.
package message

// Status is the bus-level outcome of a request.
type Status byte

const (
	StatusOK       Status = 0 // Payload holds the handler's reply
	StatusNotFound Status = 1 // No handler subscribed under Name
	StatusFailed   Status = 2 // The bus could not produce a reply, see Error
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RPCMessage carries one bus request or reply.
//
//   - On request:  Name is set, Payload contains the encoded request, Status is StatusOK.
//   - On reply:    Payload contains the encoded envelope, or Status/Error describe why there is none.
type RPCMessage struct {
	Name    string `json:"name"`            // Call name, e.g. "Player.hasState"
	Status  Status `json:"status"`          // Bus-level outcome (replies only)
	Error   string `json:"error,omitempty"` // Bus-level failure description
	Payload []byte `json:"payload"`         // Encoded contract bytes
}
