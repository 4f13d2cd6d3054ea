package view

import (
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

const (
	flashSessionName = "flash-session"
	flashKeyInfo     = "info"
	flashKeyError    = "error"
	flashKeyEmail    = "form_email"
)

// Flash holds the one-shot messages pending for the next render. Info is the
// reassuring channel (sign-in confirmation, signup guidance); Error is
// reserved for hard failures shown verbatim. Setting one clears the other at
// the call sites, so at most one channel is populated per submission.
type Flash struct {
	Info  []string
	Error []string
}

// setFlash sets a flash message in the session.
func setFlash(c echo.Context, key, message string) {
	sess, _ := session.Get(flashSessionName, c)
	sess.AddFlash(message, key)
	sess.Save(c.Request(), c.Response())
}

// SetFlashInfo sets an informational flash message.
func SetFlashInfo(c echo.Context, message string) {
	setFlash(c, flashKeyInfo, message)
}

// SetFlashError sets an error flash message.
func SetFlashError(c echo.Context, message string) {
	setFlash(c, flashKeyError, message)
}

// SetFormEmail preserves a submitted email address for the next render of
// the form, surviving redirects and mode toggles.
func SetFormEmail(c echo.Context, email string) {
	setFlash(c, flashKeyEmail, email)
}

// GetFlashData retrieves and clears pending flash messages.
func GetFlashData(c echo.Context) Flash {
	sess, _ := session.Get(flashSessionName, c)

	// Flashes() retrieves and clears; the save below persists the clearing.
	var flash Flash
	for _, f := range sess.Flashes(flashKeyInfo) {
		if msg, ok := f.(string); ok {
			flash.Info = append(flash.Info, msg)
		}
	}
	for _, f := range sess.Flashes(flashKeyError) {
		if msg, ok := f.(string); ok {
			flash.Error = append(flash.Error, msg)
		}
	}
	if len(flash.Info) > 0 || len(flash.Error) > 0 {
		_ = sess.Save(c.Request(), c.Response())
	}
	return flash
}

// TakeFormEmail retrieves and clears the preserved form email, if any.
func TakeFormEmail(c echo.Context) string {
	sess, _ := session.Get(flashSessionName, c)
	flashes := sess.Flashes(flashKeyEmail)
	if len(flashes) == 0 {
		return ""
	}
	_ = sess.Save(c.Request(), c.Response())
	if email, ok := flashes[0].(string); ok {
		return email
	}
	return ""
}
