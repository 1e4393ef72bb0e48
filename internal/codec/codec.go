package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rickgao/relay/internal/model"
)

var (
	errInvalidUTF8   = errors.New("invalid utf-8")
	errEmptyText     = errors.New("empty text")
	errMissingField  = errors.New("missing field")
	errNullHeaderVal = errors.New("null header value")
)

// wireMessage is the JSON shape on the wire. Pointers distinguish a missing
// or null field from a zero value.
type wireMessage struct {
	EventName *string             `json:"eventName"`
	Headers   *map[string]*string `json:"headers"`
	Payload   *string             `json:"payload"`
}

// Encode serializes m into wire text.
func Encode(m model.Message) (string, error) {
	if err := checkUTF8(m); err != nil {
		return "", model.NewError(model.ErrEncodingFailed, err)
	}

	headers := make(map[string]*string, len(m.Headers))
	for k, v := range m.Headers {
		headers[k] = &v
	}
	wire := wireMessage{
		EventName: &m.EventName,
		Headers:   &headers,
		Payload:   &m.Payload,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wire); err != nil {
		return "", model.NewError(model.ErrEncodingFailed, err)
	}

	// Encoder terminates every value with a newline
	out := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	if !utf8.Valid(out) {
		return "", model.NewError(model.ErrEncodingFailed, errInvalidUTF8)
	}
	return string(out), nil
}

// Decode parses wire text into a Message.
func Decode(text string) (model.Message, error) {
	// json.Unmarshal would silently replace bad bytes with U+FFFD
	if !utf8.ValidString(text) {
		return model.Message{}, model.NewError(model.ErrDecodingFailed, errInvalidUTF8)
	}
	if strings.TrimSpace(text) == "" {
		return model.Message{}, model.NewError(model.ErrDecodingFailed, errEmptyText)
	}

	var wire wireMessage
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return model.Message{}, model.NewError(model.ErrDecodingFailed, err)
	}

	switch {
	case wire.EventName == nil:
		return model.Message{}, model.NewError(model.ErrDecodingFailed, fieldError("eventName"))
	case wire.Headers == nil || *wire.Headers == nil:
		return model.Message{}, model.NewError(model.ErrDecodingFailed, fieldError("headers"))
	case wire.Payload == nil:
		return model.Message{}, model.NewError(model.ErrDecodingFailed, fieldError("payload"))
	}

	headers := make(map[string]string, len(*wire.Headers))
	for k, v := range *wire.Headers {
		if v == nil {
			return model.Message{}, model.NewError(model.ErrDecodingFailed, errNullHeaderVal)
		}
		headers[k] = *v
	}

	return model.Message{
		EventName: *wire.EventName,
		Headers:   headers,
		Payload:   *wire.Payload,
	}, nil
}

func fieldError(name string) error {
	return &missingFieldError{name: name}
}

type missingFieldError struct {
	name string
}

func (e *missingFieldError) Error() string {
	return errMissingField.Error() + " " + e.name
}

func (e *missingFieldError) Unwrap() error {
	return errMissingField
}

// checkUTF8 rejects strings that JSON would silently rewrite,
// which would break decode(encode(m)) == m.
func checkUTF8(m model.Message) error {
	if !utf8.ValidString(m.EventName) || !utf8.ValidString(m.Payload) {
		return errInvalidUTF8
	}
	for k, v := range m.Headers {
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return errInvalidUTF8
		}
	}
	return nil
}
