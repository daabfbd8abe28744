package telegram

import (
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/travelwallet/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegistryLookupCommand(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/trips", commands.Command{Handler: noop, Description: "Trips", Aliases: []string{"switch"}})
	reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "Stats", AdminOnly: true})

	cases := map[string]string{
		"/trips":             "/trips",
		"trips":              "/trips",
		"/switch":            "/trips",
		"/trips@wallet_bot":  "/trips",
		"/trips extra words": "/trips",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			got, _, ok := reg.LookupCommand(in)
			if !ok || got != want {
				t.Fatalf("LookupCommand(%q) = %q, %v", in, got, ok)
			}
		})
	}
	if _, _, ok := reg.LookupCommand("500"); ok {
		t.Fatal("a bare number must not resolve to a command")
	}
}

func TestRegistrySkipsInvalidCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("menu", commands.Command{Handler: noop, Description: "x"})
	reg.RegisterCommand("/menu", commands.Command{Description: "x"})
	reg.RegisterCommand("/menu", commands.Command{Handler: noop, Description: "first"})
	reg.RegisterCommand("/menu", commands.Command{Handler: noop, Description: "second"})
	if len(reg.Commands()) != 1 || reg.Commands()["/menu"].Description != "first" {
		t.Fatalf("unexpected commands %+v", reg.Commands())
	}
}

func TestRegistryListCommandsHidesAdmin(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/menu", commands.Command{Handler: noop, Description: "Menu"})
	reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "Stats", AdminOnly: true})
	reg.RegisterCommand("/cancel", commands.Command{Handler: noop, Description: "Cancel", Hidden: true})

	if got := reg.ListCommands(true); len(got) != 1 || got[0].Text != "/menu" {
		t.Fatalf("visible = %+v", got)
	}
	if got := reg.ListCommands(false); len(got) != 3 || got[0].Text != "/cancel" {
		t.Fatalf("all = %+v", got)
	}
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCallback("rate_accept", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RegisterCallback("rate_accept", noop); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := reg.RegisterCallback("", noop); err == nil {
		t.Fatal("expected invalid error")
	}
	if _, ok := reg.GetCallback("rate_accept"); !ok {
		t.Fatal("callback not found")
	}
	if keys := reg.ListCallbacks(); len(keys) != 1 {
		t.Fatalf("keys = %v", keys)
	}
}
