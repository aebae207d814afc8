package upload

import "strings"

const upperhex = "0123456789ABCDEF"

// EncodeComponent percent-encodes s the way ECMAScript's encodeURIComponent does:
// ASCII letters, digits and - _ . ! ~ * ' ( ) pass through, every other byte of the
// UTF-8 encoding becomes %XX. A "/" inside a name is therefore encoded and never
// acts as a key separator.
func EncodeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0F])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// BuildKey joins the encoded region, business, optional branch and file name with "/".
// An empty branch drops its segment entirely.
func BuildKey(region, business, branch, fileName string) string {
	segments := []string{EncodeComponent(region), EncodeComponent(business)}
	if branch != "" {
		segments = append(segments, EncodeComponent(branch))
	}
	segments = append(segments, EncodeComponent(fileName))
	return strings.Join(segments, "/")
}
