package wallet

import "testing"

func TestParseAmount(t *testing.T) {
	valid := map[string]float64{
		"1000":       1000,
		"500":        500,
		"1 000":      1000,
		"12,5":       12.5,
		"1,000.50":   1000.5,
		"0.01":       0.01,
		" 4.5 ":      4.5,
		"1\u00a0250": 1250,
	}
	for in, want := range valid {
		got, err := ParseAmount(in)
		if err != nil || got != want {
			t.Errorf("ParseAmount(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"", "abc", "0", "-5", "1e5", "NaN", "12,5,6", "1.2.3", "Inf", "0,0"} {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) accepted", in)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{
		0:             "0.00",
		4500:          "4 500.00",
		888.888888:    "888.89",
		1234567.891:   "1 234 567.89",
		-1234.5:       "-1 234.50",
		999999.999999: "1 000 000.00",
	}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatRate(t *testing.T) {
	cases := map[float64]string{4.5: "4.5", 5: "5", 0.22222: "0.2222", 150.125: "150.125"}
	for in, want := range cases {
		if got := FormatRate(in); got != want {
			t.Errorf("FormatRate(%v) = %q, want %q", in, got, want)
		}
	}
}
