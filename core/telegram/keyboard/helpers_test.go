package keyboard

import "testing"

func TestInlineButtonsRows(t *testing.T) {
	m := InlineButtonsRows(
		[]InlineBtn{{Text: "Accept", Unique: "rate_accept"}, {Text: "Custom", Unique: "rate_custom"}},
		nil,
		[]InlineBtn{{Text: "Trip", Unique: "trip_select", Data: "4"}},
	)
	if m == nil {
		t.Fatal("expected markup")
	}
	if len(m.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(m.InlineKeyboard))
	}
	btn := m.InlineKeyboard[1][0]
	if btn.Unique != "trip_select" || btn.Data != "4" {
		t.Fatalf("button = %+v", btn)
	}
}

func TestInlineButtonsRowsEmpty(t *testing.T) {
	if m := InlineButtonsRows(); m != nil {
		t.Fatalf("expected nil markup, got %+v", m)
	}
}
