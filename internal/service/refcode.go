package service

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// RefCode derives the payment reconciliation reference shown to the guest.
// A known invite code is used as-is (uppercased). Without one, the code is
// synthesized from up to three name initials and the last four phone
// digits, falling back to a random four-digit suffix so the result is
// always quotable.
func RefCode(code, name, phone string) string {
	if c := strings.TrimSpace(code); c != "" {
		return strings.ToUpper(c)
	}

	initials := "GUEST"
	if fields := strings.Fields(name); len(fields) > 0 {
		var b strings.Builder
		for _, f := range fields {
			r := []rune(f)
			b.WriteString(strings.ToUpper(string(r[0])))
			if b.Len() >= 3 {
				break
			}
		}
		initials = b.String()
	}

	var digits []byte
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, byte(r))
		}
	}
	suffix := ""
	if len(digits) >= 4 {
		suffix = string(digits[len(digits)-4:])
	} else if len(digits) > 0 {
		suffix = string(digits)
	} else {
		suffix = fmt.Sprintf("%d", rand.IntN(9000)+1000)
	}

	return initials + "-" + suffix
}
