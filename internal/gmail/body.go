package gmail

import (
	"encoding/base64"
	"errors"
	"fmt"

	gmail "google.golang.org/api/gmail/v1"
)

// ErrNoHTMLBody is returned when a message carries no decodable body.
var ErrNoHTMLBody = errors.New("no html body found in message")

// HTMLBody extracts the body of a message. Data attached directly to the
// payload wins; otherwise the last text/html part found in a depth-first walk
// is used.
func HTMLBody(msg *gmail.Message) (string, error) {
	if msg == nil || msg.Payload == nil {
		return "", ErrNoHTMLBody
	}

	var body string
	if msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
		body = msg.Payload.Body.Data
	} else {
		walkParts(msg.Payload, func(part *gmail.MessagePart) {
			if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
				body = part.Body.Data
			}
		})
	}

	if body == "" {
		return "", fmt.Errorf("%w %s", ErrNoHTMLBody, msg.Id)
	}

	decoded, err := decodeBody(body)
	if err != nil {
		return "", fmt.Errorf("%w: message %s: %v", ErrNoHTMLBody, msg.Id, err)
	}
	return string(decoded), nil
}

// decodeBody decodes base64url body data. Gmail omits padding, but some
// clients send padded or standard-alphabet data.
func decodeBody(data string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.StdEncoding,
	}

	var lastErr error
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(data)
		if err == nil {
			return decoded, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to decode message body: %w", lastErr)
}

// walkParts recursively walks through message parts
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}

	fn(part)

	for _, subpart := range part.Parts {
		walkParts(subpart, fn)
	}
}
