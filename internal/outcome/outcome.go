// Package outcome implements the response-interpretation and user-messaging
// policy for credential submissions. The auth backend is ambiguous about
// whether "no user returned" on signup means a duplicate account or a
// pending email confirmation, so the policy sniffs message text and always
// prefers a reassuring informational message over a hard error in the
// ambiguous case.
package outcome

import (
	"strings"

	"github.com/acmelabs/signon/internal/domain"
)

// Mode selects between sign-in and sign-up submission semantics.
type Mode string

const (
	SignIn Mode = "signin"
	SignUp Mode = "signup"
)

// ParseMode maps a form value to a Mode, defaulting to SignIn.
func ParseMode(s string) Mode {
	if Mode(s) == SignUp {
		return SignUp
	}
	return SignIn
}

// Toggle flips between the two modes.
func (m Mode) Toggle() Mode {
	if m == SignIn {
		return SignUp
	}
	return SignIn
}

// Kind distinguishes reassuring informational messages from hard failures.
type Kind int

const (
	Info Kind = iota
	Error
)

// Outcome is the classified result of one submission. Exactly one message is
// set; ClearForm tells the view to empty the email and password inputs.
type Outcome struct {
	Kind      Kind
	Text      string
	ClearForm bool
}

// User-facing message texts.
const (
	MsgSignedIn = "Signed in successfully."

	MsgConfirmationPending = "Account created! Please check your email for a confirmation link."

	MsgAlreadyRegistered = "A user with this email is already registered. Try signing in or reset your password."

	MsgMaybeRegistered = "This email may already be registered or is awaiting confirmation. Please check your email or try signing in."
)

// Classify applies the messaging policy to a backend response. It never
// leaves a submission unclassified: every path terminates in either an Info
// or an Error outcome.
func Classify(mode Mode, res *domain.AuthResult, err error) Outcome {
	if err != nil {
		msg := err.Error()
		// The duplicate-account signal is unreliable, so a conflict that
		// surfaces as an error is still downgraded to information.
		if looksLikeDuplicate(msg) {
			return Outcome{Kind: Info, Text: MsgAlreadyRegistered}
		}
		return Outcome{Kind: Error, Text: msg}
	}

	if mode == SignIn {
		return Outcome{Kind: Info, Text: MsgSignedIn}
	}

	// A provider may report success with no result at all; treat it like
	// the no-user, no-message case.
	if res == nil {
		return Outcome{Kind: Info, Text: MsgMaybeRegistered}
	}

	if res.HasUser() {
		return Outcome{Kind: Info, Text: MsgConfirmationPending, ClearForm: true}
	}
	if looksLikeDuplicate(res.Message) {
		return Outcome{Kind: Info, Text: MsgAlreadyRegistered}
	}
	return Outcome{Kind: Info, Text: MsgMaybeRegistered}
}

// looksLikeDuplicate reports whether a backend message reads like an
// existing-account conflict.
func looksLikeDuplicate(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "already") || strings.Contains(lower, "duplicate")
}
