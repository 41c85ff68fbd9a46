// Package privacy provides identity anonymization and payload encryption for
// stored conversation data. Raw user identifiers and plaintext content never
// reach the database.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

const anonPrefix = "anon_"

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

// AnonymizeID derives a stable pseudonymous identifier from a raw user ID.
// The same input always maps to the same output so one user's rows stay
// linkable without storing who they are.
func AnonymizeID(userID string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(userID)))
	return anonPrefix + fmt.Sprintf("%x", h)[:24]
}

// IsAnonymizedID reports whether s looks like an output of AnonymizeID.
func IsAnonymizedID(s string) bool {
	return strings.HasPrefix(s, anonPrefix) && len(s) == len(anonPrefix)+24
}

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE] in
// free text before it is logged or archived.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}
