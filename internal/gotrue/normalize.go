package gotrue

import "encoding/json"

// Normalized is the distilled shape of an auth backend response: whether a
// user object came back, and whatever human-readable message the backend
// attached. The classification policy operates only on this pair.
type Normalized struct {
	HasUser bool
	Message string
}

// rawEnvelope covers every response shape the backend has been observed to
// produce. The error field alone appears as a bare string, an object with a
// "message" key, or not at all with the text under "error_description",
// "msg" or "message" instead. The user object is sometimes nested under
// "data" and sometimes returned as the top-level body of /signup.
type rawEnvelope struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresIn    int64           `json:"expires_in"`
	User         json.RawMessage `json:"user"`
	Data         struct {
		User json.RawMessage `json:"user"`
	} `json:"data"`

	// Top-level user shape: /signup with confirmation pending returns the
	// created user directly as the body.
	ID    string `json:"id"`
	Email string `json:"email"`

	Error            json.RawMessage `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
}

// Normalize extracts (HasUser, Message) from a loosely typed backend
// response body. It never fails: unparseable bodies yield the raw text as
// the message so the caller still has something to show.
func Normalize(body []byte) Normalized {
	var raw rawEnvelope
	if err := json.Unmarshal(body, &raw); err != nil {
		return Normalized{Message: string(body)}
	}
	return Normalized{
		HasUser: hasUser(&raw),
		Message: extractMessage(&raw),
	}
}

func hasUser(raw *rawEnvelope) bool {
	if present(raw.User) || present(raw.Data.User) {
		return true
	}
	// A bare user body has an id but no token material.
	return raw.ID != "" && raw.AccessToken == ""
}

// present reports whether a raw JSON field holds an actual object,
// filtering out absent fields and explicit nulls.
func present(m json.RawMessage) bool {
	return len(m) > 0 && string(m) != "null"
}

func extractMessage(raw *rawEnvelope) string {
	if present(raw.Error) {
		// Either {"error": "text"} or {"error": {"message": "text"}}.
		var s string
		if err := json.Unmarshal(raw.Error, &s); err == nil && s != "" {
			// Prefer the long-form description when the bare string is
			// just an error code like "invalid_grant".
			if raw.ErrorDescription != "" {
				return raw.ErrorDescription
			}
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
	}
	if raw.ErrorDescription != "" {
		return raw.ErrorDescription
	}
	if raw.Msg != "" {
		return raw.Msg
	}
	return raw.Message
}
