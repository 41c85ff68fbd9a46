// Package fault defines the typed error kinds shared across the pipeline.
//
// Every error that crosses a package boundary in the request path carries a
// Kind and a stable code so HTTP callers receive {message, error_code}
// without internal detail.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy decisions.
type Kind string

const (
	// KindConfiguration marks missing/invalid rule tables or thresholds. Fatal at startup.
	KindConfiguration Kind = "configuration"
	// KindSecurity marks key material or decryption-authentication failures.
	// Never falls back to plaintext.
	KindSecurity Kind = "security"
	// KindCrisisDetection marks scorer failures. Must not be swallowed into a zero score.
	KindCrisisDetection Kind = "crisis_detection"
	// KindPrivacy marks anonymization or purge failures.
	KindPrivacy Kind = "privacy"
	// KindDatabase marks connectivity/query failures.
	KindDatabase Kind = "database"
	// KindInternal marks everything else.
	KindInternal Kind = "internal"
)

// Stable error codes surfaced to callers.
const (
	CodeConfigMissingRules  = "CONFIG_001"
	CodeConfigInvalidValue  = "CONFIG_002"
	CodeKeyUnavailable      = "SEC_001"
	CodeDecryptFailed       = "SEC_002"
	CodeUnknownKey          = "SEC_003"
	CodeCrisisScorer        = "CRISIS_001"
	CodeAnonymization       = "PRIVACY_001"
	CodeRetentionPurge      = "PRIVACY_002"
	CodeErasure             = "PRIVACY_003"
	CodeDatabaseUnavailable = "DB_001"
	CodeDatabaseQuery       = "DB_002"
	CodeInternal            = "INT_001"
)

// Error is a classified error with a stable code.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error without a cause.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, code, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err, or CodeInternal for unclassified errors.
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
