package commands

import (
	"slices"
	"testing"
)

func TestEndpoints(t *testing.T) {
	cmd := Command{Aliases: []string{"switch", "", "/trip", "switch"}}
	got := cmd.Endpoints("/trips")
	want := []string{"/trips", "/switch", "/trip"}
	if !slices.Equal(got, want) {
		t.Fatalf("Endpoints = %v, want %v", got, want)
	}
}
