package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBold(t *testing.T) {
	assert.Equal(t, "𝗔𝗭𝗮𝘇𝟬𝟵", Bold("AZaz09"))
	assert.Equal(t, "𝗛𝗶, 𝘆𝗼𝘂!", Bold("Hi, you!"))
	assert.Equal(t, "é", Bold("é"))
}

func TestItalic(t *testing.T) {
	assert.Equal(t, "𝘈𝘡𝘢𝘻", Italic("AZaz"))
	assert.Equal(t, "𝘷2", Italic("v2"))
}

func TestStripThinking(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no block", in: "plain </think> text", want: "plain </think> text"},
		{name: "single block", in: "<think>hmm</think>Post", want: "Post"},
		{name: "last close wins", in: "<think>a</think>b</think>c", want: "c"},
		{name: "unterminated", in: "<think>still thinking", want: "<think>still thinking"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripThinking(tt.in))
		})
	}
}

func TestToLinkedIn(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bold",
			in:   "**Big news** today",
			want: "𝗕𝗶𝗴 𝗻𝗲𝘄𝘀 today",
		},
		{
			name: "italic",
			in:   "an *important* step",
			want: "an 𝘪𝘮𝘱𝘰𝘳𝘵𝘢𝘯𝘵 step",
		},
		{
			name: "bold and italic",
			in:   "**AI** is *here*",
			want: "𝗔𝗜 is 𝘩𝘦𝘳𝘦",
		},
		{
			name: "bullets",
			in:   "Points:\n* first\n* second",
			want: "Points:\n• first\n• second",
		},
		{
			name: "bullet with italic",
			in:   "* one *two*",
			want: "• one 𝘵𝘸𝘰",
		},
		{
			name: "italic does not span lines",
			in:   "a *b\nc* d",
			want: "a *b\nc* d",
		},
		{
			name: "lone asterisk",
			in:   "5 * 3",
			want: "5 * 3",
		},
		{
			name: "empty emphasis untouched",
			in:   "x ** y",
			want: "x ** y",
		},
		{
			name: "escaped newlines",
			in:   `line one\nline two`,
			want: "line one\nline two",
		},
		{
			name: "think block and trim",
			in:   "<think>draft *x*</think>\n\n  **Hi**  \n",
			want: "𝗛𝗶",
		},
		{
			name: "hashtags untouched",
			in:   "Read more: https://example.com #AI #ML",
			want: "Read more: https://example.com #AI #ML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToLinkedIn(tt.in))
		})
	}
}
