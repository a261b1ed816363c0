package gmail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func htmlPart(mime, content string) *gmail.MessagePart {
	return &gmail.MessagePart{
		MimeType: mime,
		Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(content))},
	}
}

func TestHTMLBody(t *testing.T) {
	tests := []struct {
		name    string
		msg     *gmail.Message
		want    string
		wantErr bool
	}{
		{
			name: "payload body",
			msg:  &gmail.Message{Id: "1", Payload: htmlPart("text/html", "<p>direct</p>")},
			want: "<p>direct</p>",
		},
		{
			name: "single part plain text payload is returned as is",
			msg:  &gmail.Message{Id: "1", Payload: htmlPart("text/plain", "just text")},
			want: "just text",
		},
		{
			name: "last html part wins",
			msg: &gmail.Message{Id: "1", Payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					htmlPart("text/html", "<p>first</p>"),
					htmlPart("text/plain", "plain"),
					htmlPart("text/html", "<p>second</p>"),
				},
			}},
			want: "<p>second</p>",
		},
		{
			name: "nested multipart",
			msg: &gmail.Message{Id: "1", Payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "multipart/alternative",
						Parts: []*gmail.MessagePart{
							htmlPart("text/plain", "plain"),
							htmlPart("text/html", "<p>nested</p>"),
						},
					},
					{MimeType: "image/png", Filename: "logo.png", Body: &gmail.MessagePartBody{AttachmentId: "att"}},
				},
			}},
			want: "<p>nested</p>",
		},
		{
			name: "plain text only",
			msg: &gmail.Message{Id: "1", Payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Parts:    []*gmail.MessagePart{htmlPart("text/plain", "plain")},
			}},
			wantErr: true,
		},
		{
			name:    "no payload",
			msg:     &gmail.Message{Id: "1"},
			wantErr: true,
		},
		{
			name: "undecodable body",
			msg: &gmail.Message{Id: "1", Payload: &gmail.MessagePart{
				MimeType: "text/html",
				Body:     &gmail.MessagePartBody{Data: "!!!not base64!!!"},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HTMLBody(tt.msg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoHTMLBody)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeBody(t *testing.T) {
	// "??>" encodes to characters that differ between the URL and standard alphabets.
	raw := []byte("??>hello")

	for name, enc := range map[string]*base64.Encoding{
		"raw url":  base64.RawURLEncoding,
		"url":      base64.URLEncoding,
		"standard": base64.StdEncoding,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := decodeBody(enc.EncodeToString(raw))
			require.NoError(t, err)
			assert.Equal(t, raw, got)
		})
	}

	_, err := decodeBody("!!!")
	assert.Error(t, err)
}
