package wallet

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// errInvalidAmount marks input that is not a positive decimal.
var errInvalidAmount = errors.New("invalid amount")

var amountRe = regexp.MustCompile(`^\d+(\.\d+)?$`)

// ParseAmount reads a positive decimal. Spaces are ignored. A comma is the decimal
// separator unless the input also has a dot, in which case commas group thousands.
func ParseAmount(text string) (float64, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	if strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.Replace(s, ",", ".", 1)
	}
	if !amountRe.MatchString(s) {
		return 0, errInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !positive(v) {
		return 0, errInvalidAmount
	}
	return v, nil
}

// FormatAmount renders v with two decimals and spaces between thousands: 1234567.891 -> "1 234 567.89".
func FormatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}

// FormatRate renders an exchange rate with up to four significant decimals.
func FormatRate(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
