package extract

import (
	"regexp"
	"strings"
)

var phoneRe = regexp.MustCompile(`\+?\d[\d\s\-().]{7,}\d`)

// Phone finds a phone number and returns it in +<digits> form. Russian
// numbers written with a leading 8 or without a country code are rewritten
// to +7. Candidates with fewer than 10 or more than 15 digits yield
// ErrOutOfRange.
func Phone(text string) (string, error) {
	candidate := phoneRe.FindString(Normalize(text))
	if candidate == "" {
		return "", ErrNoMatch
	}
	var b strings.Builder
	for _, r := range candidate {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 11 && digits[0] == '8':
		digits = "7" + digits[1:]
	case len(digits) == 10 && digits[0] == '9' && !strings.HasPrefix(candidate, "+"):
		digits = "7" + digits
	}
	if len(digits) < 10 || len(digits) > 15 {
		return "", ErrOutOfRange
	}
	return "+" + digits, nil
}
