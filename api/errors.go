package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed: %s %s: %d %s: %s",
		e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), strings.TrimSpace(string(e.Body)))
}

func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Failure is the normalized outcome of a failed operation: one message fit
// for display and, for validation errors, the message of each field.
type Failure struct {
	Message string
	Fields  map[string]string
	Err     error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Normalize reduces err to a Failure. Messages are taken from the backend
// body in this order: field errors, detail, non_field_errors[0], message or
// error, and finally fallback. Transport errors always get fallback.
func Normalize(err error, fallback string) *Failure {
	if err == nil {
		return nil
	}
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}
	out := &Failure{Message: fallback, Err: err}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return out
	}
	message, fields := ExtractMessage(apiErr.Body)
	if message != "" {
		out.Message = message
	}
	out.Fields = fields
	return out
}

// reservedKeys never name a form field in a backend error body.
var reservedKeys = map[string]bool{
	"detail":           true,
	"non_field_errors": true,
	"message":          true,
	"messages":         true,
	"error":            true,
	"errors":           true,
	"success":          true,
	"code":             true,
}

// ExtractMessage picks the most specific message out of an error body and
// returns the per-field messages it found. Field order follows the body. A
// bare string or list body, as sent for non-field validation errors, yields
// its first string.
func ExtractMessage(body []byte) (string, map[string]string) {
	members, ok := orderedMembers(body)
	if !ok {
		return firstText(body), nil
	}

	scope := members
	for _, m := range members {
		if m.key != "errors" {
			continue
		}
		if nested, ok := orderedMembers(m.value); ok {
			scope = nested
		}
		break
	}

	var first string
	var fields map[string]string
	for _, m := range scope {
		if reservedKeys[m.key] {
			continue
		}
		text := firstText(m.value)
		if text == "" {
			continue
		}
		if fields == nil {
			fields = map[string]string{}
		}
		fields[m.key] = text
		if first == "" {
			first = text
		}
	}
	if first != "" {
		return first, fields
	}

	for _, key := range []string{"detail", "non_field_errors", "message", "error"} {
		if text := lookupText(members, key); text != "" {
			return text, nil
		}
		if text := lookupText(scope, key); text != "" {
			return text, nil
		}
	}
	return "", nil
}

type member struct {
	key   string
	value json.RawMessage
}

func orderedMembers(data []byte) ([]member, bool) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	tok, err := decoder.Token()
	if err != nil {
		return nil, false
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, false
	}
	members := []member{}
	for decoder.More() {
		tok, err := decoder.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var value json.RawMessage
		if err := decoder.Decode(&value); err != nil {
			return nil, false
		}
		members = append(members, member{key: key, value: value})
	}
	return members, true
}

func lookupText(members []member, key string) string {
	for _, m := range members {
		if m.key == key {
			return firstText(m.value)
		}
	}
	return ""
}

// firstText returns a string value, or the first string of an array.
func firstText(raw json.RawMessage) string {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
