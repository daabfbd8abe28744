package router

import (
	"errors"
	"fmt"
	"testing"
)

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "trip closed" }

func TestHandlerName(t *testing.T) {
	cases := []struct{ kind, key, want string }{
		{"command", "", "command.unknown"},
		{"command", "/NewTrip", "command.newtrip"},
		{"callback", " exp ok ", "callback.exp_ok"},
		{"callback", "trip_select", "callback.trip_select"},
	}
	for _, tc := range cases {
		if got := handlerName(tc.kind, tc.key); got != tc.want {
			t.Errorf("handlerName(%q, %q) = %q, want %q", tc.kind, tc.key, got, tc.want)
		}
	}
}

func TestErrorCode(t *testing.T) {
	if got := errorCode(nil); got != "" {
		t.Fatalf("nil error code = %q", got)
	}
	if got := errorCode(fmt.Errorf("confirm: %w", codedErr{})); got != "TRIP_CLOSED" {
		t.Fatalf("wrapped coder = %q", got)
	}
	if got := errorCode(fmt.Errorf("wrap: %w", errors.New("x"))); got != "WRAPERROR" {
		t.Fatalf("wrapped = %q", got)
	}
}
