package validate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"contract-rpc/rpcerr"
)

type profile struct {
	Level int8
	Name  string
	Nick  *string
}

func profileValidator() *Validator[profile] {
	return New[profile]("profile",
		Field("level", func(p profile) (any, bool) { return p.Level, true },
			Required(), OneOf(1, 2, 3)),
		Field("name", func(p profile) (any, bool) { return p.Name, true },
			Length(1, 8), UTF8()),
		Field("nick", func(p profile) (any, bool) {
			if p.Nick == nil {
				return nil, false
			}
			return *p.Nick, true
		}, Length(1, -1)),
	)
}

func TestValidateAccepts(t *testing.T) {
	v := profileValidator()
	in := profile{Level: 2, Name: "orc"}
	out, err := v.Validate(context.Background(), in)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out != in {
		t.Fatalf("expect record unchanged, got %+v", out)
	}
}

func TestValidateRejectsOutOfEnum(t *testing.T) {
	v := profileValidator()
	_, err := v.Validate(context.Background(), profile{Level: 42, Name: "orc"})
	var ve *rpcerr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expect ValidationError, got %T: %v", err, err)
	}
	if ve.Field != "level" || !strings.HasPrefix(ve.Constraint, "one of") {
		t.Fatalf("unexpected validation error: %+v", ve)
	}
	if ve.Shape != "profile" {
		t.Fatalf("expect shape 'profile', got %q", ve.Shape)
	}
}

func TestValidateFirstFailureDeterministic(t *testing.T) {
	v := profileValidator()
	// level and name are both invalid; level is declared first
	for i := 0; i < 10; i++ {
		_, err := v.Validate(context.Background(), profile{Level: 9, Name: ""})
		var ve *rpcerr.ValidationError
		if !errors.As(err, &ve) || ve.Field != "level" {
			t.Fatalf("expect level failure, got %v", err)
		}
	}
}

func TestValidateOptionalField(t *testing.T) {
	v := profileValidator()
	empty := ""
	_, err := v.Validate(context.Background(), profile{Level: 1, Name: "a", Nick: &empty})
	var ve *rpcerr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "nick" {
		t.Fatalf("expect nick failure, got %v", err)
	}

	if _, err := v.Validate(context.Background(), profile{Level: 1, Name: "a"}); err != nil {
		t.Fatalf("absent optional field must pass: %v", err)
	}
}

func TestValidateRejectsInvalidUTF8(t *testing.T) {
	v := profileValidator()
	_, err := v.Validate(context.Background(), profile{Level: 1, Name: "\xff\xfe"})
	var ve *rpcerr.ValidationError
	if !errors.As(err, &ve) || ve.Constraint != "valid utf-8" {
		t.Fatalf("expect utf-8 failure, got %v", err)
	}
}

func TestValidateHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := profileValidator().Validate(ctx, profile{Level: 1, Name: "a"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expect context.Canceled, got %v", err)
	}
}

func TestConstraints(t *testing.T) {
	cases := []struct {
		c       Constraint
		value   any
		present bool
		want    bool
	}{
		{Required(), nil, false, false},
		{Required(), 0, true, true},
		{OneOf(1, 2), int32(2), true, true},
		{OneOf(1, 2), "2", true, false},
		{OneOf(1, 2), nil, false, true},
		{Range(0, 10), uint8(10), true, true},
		{Range(0, 10), int64(11), true, false},
		{Length(2, 3), []byte("abcd"), true, false},
		{Length(0, -1), strings.Repeat("x", 1<<16), true, true},
		{Bool(), true, true, true},
		{Bool(), 1, true, false},
		{Func("even", func(v any) bool { return v.(int)%2 == 0 }), 4, true, true},
	}
	for i, tc := range cases {
		if got := tc.c.Check(tc.value, tc.present); got != tc.want {
			t.Errorf("case %d: %s.Check(%v, %v) = %v, want %v", i, tc.c, tc.value, tc.present, got, tc.want)
		}
	}
}
