package pubsub

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelopeWith(data string) string {
	return `{
		"message": {
			"data": "` + data + `",
			"messageId": "2070443601311540",
			"publishTime": "2021-02-26T19:13:55.749Z",
			"attributes": {"origin": "gmail"}
		},
		"subscription": "projects/myproject/subscriptions/mysubscription"
	}`
}

func TestDecode(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"user@example.com","historyId":9876543210}`))

	env, err := Decode(strings.NewReader(envelopeWith(payload)))
	require.NoError(t, err)

	assert.Equal(t, "projects/myproject/subscriptions/mysubscription", env.Subscription)
	assert.Equal(t, "2070443601311540", env.Message.MessageID)
	assert.Equal(t, "gmail", env.Message.Attributes["origin"])
	assert.Equal(t, 2021, env.Message.PublishTime.Year())

	n, err := env.Message.Notification()
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", n.EmailAddress)
	assert.Equal(t, uint64(9876543210), n.HistoryID)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(strings.NewReader("{not json"))
	assert.Error(t, err)
}

func TestNotification_StringHistoryID(t *testing.T) {
	m := Message{Data: base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"a@b.c","historyId":"42"}`))}

	n, err := m.Notification()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n.HistoryID)
}

func TestNotification_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad base64", "%%%"},
		{"not json", base64.StdEncoding.EncodeToString([]byte("hello"))},
		{"bad history id", base64.StdEncoding.EncodeToString([]byte(`{"historyId":"abc"}`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Message{Data: tt.data}
			_, err := m.Notification()
			assert.Error(t, err)
		})
	}

	_, err := (&Message{}).Notification()
	assert.ErrorIs(t, err, ErrNoData)
}
