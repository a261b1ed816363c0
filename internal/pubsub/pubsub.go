// Package pubsub decodes Cloud Pub/Sub push deliveries carrying Gmail
// mailbox notifications.
package pubsub

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// MaxEnvelopeSize bounds the push request body read by Decode.
const MaxEnvelopeSize = 1 << 20

// ErrNoData is returned by Notification when the message has no payload.
var ErrNoData = errors.New("push message has no data")

// Envelope is the JSON body of a Pub/Sub push request.
type Envelope struct {
	Message      Message `json:"message"`
	Subscription string  `json:"subscription"`
}

// Message is the Pub/Sub message inside a push envelope. Data is base64
// encoded.
type Message struct {
	Data        string            `json:"data"`
	MessageID   string            `json:"messageId"`
	PublishTime time.Time         `json:"publishTime"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// GmailNotification is the payload Gmail publishes when the watched mailbox
// changes.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Decode reads a push envelope from r.
func Decode(r io.Reader) (*Envelope, error) {
	var env Envelope
	dec := json.NewDecoder(io.LimitReader(r, MaxEnvelopeSize))
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("invalid push envelope: %w", err)
	}
	return &env, nil
}

// RawData returns the decoded message data.
func (m *Message) RawData() ([]byte, error) {
	if m.Data == "" {
		return nil, ErrNoData
	}
	data, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 message data: %w", err)
	}
	return data, nil
}

// Notification decodes the message data as a Gmail notification. Gmail sends
// historyId as a JSON number, but string values are accepted too.
func (m *Message) Notification() (*GmailNotification, error) {
	data, err := m.RawData()
	if err != nil {
		return nil, err
	}

	var raw struct {
		EmailAddress string          `json:"emailAddress"`
		HistoryID    json.RawMessage `json:"historyId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid gmail notification: %w", err)
	}

	n := &GmailNotification{EmailAddress: raw.EmailAddress}
	if len(raw.HistoryID) > 0 {
		s := string(raw.HistoryID)
		if unq, err := strconv.Unquote(s); err == nil {
			s = unq
		}
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid history id %s: %w", raw.HistoryID, err)
		}
		n.HistoryID = id
	}
	return n, nil
}
