package r2

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// TransportError reports that the HTTP exchange could not be completed at
// all: connection failure, DNS failure or timeout. No status code exists.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports a response status outside the success range, or a 404
// on an operation that treats a missing object as an error. Message is the
// text of the service's XML error body when one was present and parseable.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// MalformedBodyError reports an error-path response whose body exists but is
// not valid XML. The raw body is retained for diagnosis.
type MalformedBodyError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *MalformedBodyError) Error() string {
	return fmt.Sprintf("status %d with malformed error body %q: %v", e.StatusCode, e.Body, e.Err)
}

func (e *MalformedBodyError) Unwrap() error { return e.Err }

// statusError classifies an error-path response body. A non-empty body must
// be XML; a root <Error> element contributes its character data as the
// message, any other root is tolerated as "no message".
func statusError(status int, body []byte) error {
	if len(body) == 0 {
		return &StatusError{StatusCode: status}
	}

	var payload struct {
		XMLName xml.Name
		Text    string `xml:",chardata"`
	}
	if err := xml.Unmarshal(body, &payload); err != nil {
		return &MalformedBodyError{StatusCode: status, Body: body, Err: err}
	}

	var message string
	if payload.XMLName.Local == "Error" {
		message = strings.TrimSpace(payload.Text)
	}
	return &StatusError{StatusCode: status, Message: message}
}
