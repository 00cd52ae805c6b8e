package utils

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DecodeText interprets raw name bytes from fitting files. Older
// tooling wrote Windows-1252 names; bytes that are not valid UTF-8 go
// through that decoder instead.
func DecodeText(bs []byte) string {
	if utf8.Valid(bs) {
		return string(bs)
	}
	s, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), bs)
	if err != nil {
		return string(bs)
	}
	return string(s)
}
