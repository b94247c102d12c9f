package helpers

import (
	"strings"

	"github.com/google/uuid"
)

const codeBytes = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// randomCode draws from a v4 UUID, which reads crypto/rand. len(codeBytes)
// divides 256 so every glyph is equally likely.
func randomCode(n int) string {
	b := make([]byte, 0, n)
	for len(b) < n {
		id := uuid.New()
		for _, r := range id {
			if len(b) == n {
				break
			}
			b = append(b, codeBytes[int(r)%len(codeBytes)])
		}
	}
	return string(b)
}

// GenerateReferralCode returns an 8 character code without ambiguous
// glyphs (0/O, 1/I).
func GenerateReferralCode() string {
	return randomCode(8)
}

func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
