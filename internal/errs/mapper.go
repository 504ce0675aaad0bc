// Package errs classifies upstream errors as fatal or recoverable and
// scrubs the upstream credential from anything bound for the client.
package errs

import "strings"

// Classification is the outcome of classifying an upstream error.
type Classification int

const (
	// Recoverable errors leave the session in Ready; only a Warning is
	// emitted to the client.
	Recoverable Classification = iota
	// Fatal errors emit an Error to the client and transition to Closing.
	Fatal
)

// fatalCodes are upstream error codes the mapper always treats as fatal,
// independent of classification heuristics on the message text: an
// authentication failure or a protocol violation reported by upstream is
// never recoverable.
var fatalCodes = map[string]bool{
	"authentication_error":  true,
	"invalid_api_key":       true,
	"protocol_violation":    true,
	"session_expired":       true,
}

// Mapper is the single place that classifies upstream errors and redacts
// the upstream credential. One Mapper per session, constructed with that
// session's credential.
type Mapper struct {
	credential string
}

// NewMapper builds a Mapper that scrubs credential from any text it
// produces for the client.
func NewMapper(credential string) *Mapper {
	return &Mapper{credential: credential}
}

// Redact replaces every occurrence of the upstream credential in s with a
// placeholder. This is the only place the credential and client-bound text
// ever meet: the upstream credential string must never appear in any
// message sent to the client.
func (m *Mapper) Redact(s string) string {
	if m.credential == "" {
		return s
	}
	return strings.ReplaceAll(s, m.credential, "[redacted]")
}

// ClassifyCode reports whether an upstream error code is fatal or
// recoverable.
func (m *Mapper) ClassifyCode(code string) Classification {
	if fatalCodes[code] {
		return Fatal
	}
	return Recoverable
}

// Description builds the client-facing, credential-scrubbed description for
// an upstream error event's message.
func (m *Mapper) Description(message string) string {
	return m.Redact(message)
}
