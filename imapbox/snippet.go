package imapbox

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// SnippetLength matches the preview length Gmail computes server side.
const SnippetLength = 200

// Snippet derives a preview from a raw RFC 5322 message: the text/plain
// part, or the text/html part converted to text, with whitespace collapsed
// and cut to SnippetLength runes.
func Snippet(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	text, html := bodies(raw)
	if text == "" && html != "" {
		converted, err := md.NewConverter("", true, nil).ConvertString(html)
		if err == nil {
			text = converted
		} else {
			text = html
		}
	}
	return truncateRunes(strings.Join(strings.Fields(text), " "), SnippetLength)
}

func bodies(raw []byte) (text, html string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
			return string(raw[idx+4:]), ""
		}
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain") && text == "":
			text = string(body)
		case strings.HasPrefix(contentType, "text/html") && html == "":
			html = string(body)
		}
	}
	return text, html
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
