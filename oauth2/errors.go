package oauth2

import "fmt"

// ErrorResponse is the RFC 6749 error payload returned by authorization and
// token endpoints, either as redirect query parameters (error,
// error_description, error_uri) or as a JSON body on non-2xx token responses.
type ErrorResponse struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
}

func (e ErrorResponse) Error() string {
	msg := e.Code
	if e.Description != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Description)
	}
	if e.URI != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.URI)
	}
	return msg
}
