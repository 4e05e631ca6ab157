package transcript

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Decode turns the escaped text found inside an export literal into plain
// text. HTML entities are replaced first, then \uXXXX runs (with UTF-16
// surrogate pairing), then the simple backslash escapes. Decoding is
// best-effort: if it would produce an unpaired surrogate, the input is
// returned unchanged.
func Decode(s string) string {
	if !strings.Contains(s, "\\") && !strings.Contains(s, "&") {
		return s
	}

	out := entityReplacer.Replace(s)

	if strings.Contains(out, `\u`) {
		decoded, ok := decodeUnicodeRuns(out)
		if !ok {
			return s
		}
		out = decoded
	}

	return escapeReplacer.Replace(out)
}

var entityReplacer = strings.NewReplacer(
	"&quot;", `"`,
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
)

var escapeReplacer = strings.NewReplacer(
	`\"`, `"`,
	`\'`, `'`,
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
	`\\`, `\`,
)

// decodeUnicodeRuns converts every \uXXXX sequence to its code point,
// combining surrogate pairs. Returns ok=false when a surrogate half has no
// partner.
func decodeUnicodeRuns(s string) (string, bool) {
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		u, n := parseUnicodeEscape(s[i:])
		if n == 0 {
			b.WriteByte(s[i])
			i++
			continue
		}
		if !utf16.IsSurrogate(rune(u)) {
			b.WriteRune(rune(u))
			i += n
			continue
		}
		// High surrogate must be immediately followed by a low surrogate.
		u2, n2 := parseUnicodeEscape(s[i+n:])
		if n2 == 0 {
			return "", false
		}
		r := utf16.DecodeRune(rune(u), rune(u2))
		if r == utf8.RuneError {
			return "", false
		}
		b.WriteRune(r)
		i += n + n2
	}
	return b.String(), true
}

// parseUnicodeEscape reads a leading \uXXXX from s and returns the code unit
// and the number of bytes consumed (0 when s does not start with one).
func parseUnicodeEscape(s string) (int, int) {
	if len(s) < 6 || s[0] != '\\' || s[1] != 'u' {
		return 0, 0
	}
	v := 0
	for _, c := range []byte(s[2:6]) {
		switch {
		case c >= '0' && c <= '9':
			v = v<<4 | int(c-'0')
		case c >= 'a' && c <= 'f':
			v = v<<4 | int(c-'a'+10)
		case c >= 'A' && c <= 'F':
			v = v<<4 | int(c-'A'+10)
		default:
			return 0, 0
		}
	}
	return v, 6
}
