package chat_test

import (
	"testing"

	"github.com/sohana-dev/nammai-web/internal/chat"
	"github.com/stretchr/testify/assert"
)

func TestExtractHTML(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{
			name:   "html block",
			text:   "Here you go:\n```html\n<b>hi</b>```",
			want:   "<b>hi</b>",
			wantOK: true,
		},
		{
			name:   "inner whitespace kept verbatim",
			text:   "```html\n<p>\n  a\n</p>\n```",
			want:   "<p>\n  a\n</p>\n",
			wantOK: true,
		},
		{
			name:   "first block wins",
			text:   "```html\n<b>first</b>```\ntext\n```html\n<b>second</b>```",
			want:   "<b>first</b>",
			wantOK: true,
		},
		{
			name:   "untagged fence ignored",
			text:   "```\n<b>hi</b>\n```",
			wantOK: false,
		},
		{
			name:   "other language ignored",
			text:   "```python\nprint('hi')\n```",
			wantOK: false,
		},
		{
			name:   "no fence",
			text:   "plain text with <b>html</b>",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := chat.ExtractHTML(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
