package economy

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"

	"github.com/gosimple/slug"
)

const (
	referralPrefixLen      = 6
	referralFallbackPrefix = "BONK"
	referralSuffixSpace    = 1000
)

// ReferralCodePrefix derives the code prefix from a display name: the name
// is transliterated to ASCII, only letters are kept, and at most the first six
// are upper-cased. Names without any letter fall back to "BONK".
func ReferralCodePrefix(fullName string) string {
	var b strings.Builder
	for _, r := range slug.Make(fullName) {
		if !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		if b.Len() == referralPrefixLen {
			break
		}
	}
	if b.Len() == 0 {
		return referralFallbackPrefix
	}
	return b.String()
}

// FormatReferralCode joins a prefix and numeric suffix, e.g. "ALICE42".
func FormatReferralCode(prefix string, suffix int) string {
	return fmt.Sprintf("%s%d", prefix, suffix)
}

// GenerateReferralCode builds a code with a random 0-999 suffix. intn may be
// nil, in which case math/rand/v2 is used.
func GenerateReferralCode(fullName string, intn func(int) int) string {
	if intn == nil {
		intn = rand.IntN
	}
	return FormatReferralCode(ReferralCodePrefix(fullName), intn(referralSuffixSpace))
}

// FallbackReferralCode widens the suffix to four digits once the short form
// keeps colliding.
func FallbackReferralCode(fullName string, intn func(int) int) string {
	if intn == nil {
		intn = rand.IntN
	}
	return fmt.Sprintf("%s%04d", ReferralCodePrefix(fullName), intn(10000))
}

// NormalizeReferralCode trims and upper-cases user input.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
