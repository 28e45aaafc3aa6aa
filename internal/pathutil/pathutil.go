// Package pathutil implements the small leaf utilities that keep media
// paths and DIDL-Lite text safe to put on the wire: percent-encoding,
// the double XML-escape DIDL-Lite needs when it's embedded inside a SOAP
// response, and the path sanitiser that keeps browse/stream requests
// inside the media root.
package pathutil

import "strings"

// urlSafe holds the bytes url_escape leaves untouched:
// A-Z a-z 0-9 * + - . / _ ~ @
var urlSafe [256]bool

func init() {
	const set = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789*+-./_~@"
	for i := 0; i < len(set); i++ {
		urlSafe[set[i]] = true
	}
}

const hexDigits = "0123456789ABCDEF"

// EscapeURL percent-encodes every byte not in the unreserved set. It
// returns s unchanged if nothing needs escaping.
func EscapeURL(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !urlSafe[s[i]] {
			n++
		}
	}
	if n == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if urlSafe[c] {
			b.WriteByte(c)
		} else {
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xf])
		}
	}
	return b.String()
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

// UnescapeURL decodes a percent-escaped path component. '+' becomes a
// space, valid %HH escapes decode to their byte (control bytes become a
// space), "%%" collapses to a single '%', and any other malformed '%'
// is preserved literally.
func UnescapeURL(s string) string {
	if !strings.ContainsAny(s, "+%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '+':
			b.WriteByte(' ')
		case c == '%':
			if i+1 < len(s) && s[i+1] == '%' {
				b.WriteByte('%')
				i++
				continue
			}
			if i+2 < len(s) {
				hi, ok1 := hexVal(s[i+1])
				lo, ok2 := hexVal(s[i+2])
				if ok1 && ok2 {
					v := hi<<4 | lo
					if v < 0x20 || v == 0x7f {
						b.WriteByte(' ')
					} else {
						b.WriteByte(byte(v))
					}
					i += 2
					continue
				}
			}
			b.WriteByte('%')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

var xmlOnceReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXMLOnce performs a single pass of entity escaping.
func EscapeXMLOnce(s string) string {
	if !strings.ContainsAny(s, `&<>"'`) {
		return s
	}
	return xmlOnceReplacer.Replace(s)
}

// EscapeXMLDouble doubly escapes the five XML metacharacters. DIDL-Lite
// is rendered as text inside a SOAP <Result> element, so it survives one
// XML parse as an escaped document and must itself still be valid XML
// text once that parse is undone by the receiving control point.
func EscapeXMLDouble(s string) string {
	return EscapeXMLOnce(EscapeXMLOnce(s))
}

var xmlUnescapeReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

// UnescapeXML performs a single-level decode of the five basic entities.
func UnescapeXML(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return xmlUnescapeReplacer.Replace(s)
}

// Sanitize resolves a /-separated request path against a virtual root:
// it drops empty and "." segments, resolves ".." segments backward, and
// reports false if a ".." would escape the root. The result never has a
// leading or trailing slash and never contains doubled slashes.
func Sanitize(p string) (string, bool) {
	segs := strings.Split(p, "/")
	stack := make([]string, 0, len(segs))
	for _, seg := range segs {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(stack) == 0 {
				return "", false
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, seg)
		}
	}
	return strings.Join(stack, "/"), true
}
