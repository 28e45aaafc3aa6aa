package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeURLRoundTrip(t *testing.T) {
	cases := []string{
		"clip.mp4",
		"My Movie (2020).mkv",
		"a/b/c",
		"no-escaping-needed",
		"100% done.txt",
	}
	for _, s := range cases {
		got := UnescapeURL(EscapeURL(s))
		assert.Equal(t, s, got, "round trip for %q", s)
	}
}

func TestEscapeURLUnchangedWhenSafe(t *testing.T) {
	s := "abcXYZ019*+-./_~@"
	require.Equal(t, s, EscapeURL(s))
}

func TestUnescapeURLRules(t *testing.T) {
	assert.Equal(t, "a b", UnescapeURL("a+b"))
	assert.Equal(t, "a%b", UnescapeURL("a%%b"))
	assert.Equal(t, "a b", UnescapeURL("a%00b"))
	assert.Equal(t, "a!b", UnescapeURL("a%21b"))
	assert.Equal(t, "a%zb", UnescapeURL("a%zb"))
}

func TestEscapeXMLDouble(t *testing.T) {
	in := `Tom & Jerry's "Big" <Adventure>`
	once := EscapeXMLOnce(in)
	twice := EscapeXMLDouble(in)
	assert.Equal(t, once, UnescapeXML(twice))
	assert.Equal(t, in, UnescapeXML(UnescapeXML(twice)))
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", "", true},
		{"/", "", true},
		{"a/b/c", "a/b/c", true},
		{"a//b", "a/b", true},
		{"a/./b", "a/b", true},
		{"a/b/../c", "a/c", true},
		{"../etc/passwd", "", false},
		{"a/../../b", "", false},
		{"Music/", "Music", true},
	}
	for _, c := range cases {
		got, ok := Sanitize(c.in)
		assert.Equal(t, c.ok, ok, "ok for %q", c.in)
		if c.ok {
			assert.Equal(t, c.want, got, "result for %q", c.in)
		}
	}
}
