package mailbox

import (
	"mime"
	"strings"

	"github.com/emersion/go-message/charset"
)

// headerDecoder decodes RFC 2047 encoded words, including multi-fragment
// headers, using go-message's charset table for non-UTF-8 encodings.
var headerDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// decodeHeader decodes a possibly MIME-encoded header value to readable
// text. Undecodable input falls back to the raw bytes with invalid UTF-8
// sequences dropped; this never returns an error.
func decodeHeader(s string) string {
	if s == "" {
		return ""
	}
	decoded, err := headerDecoder.DecodeHeader(s)
	if err != nil {
		return strings.ToValidUTF8(s, "")
	}
	return strings.ToValidUTF8(decoded, "")
}
