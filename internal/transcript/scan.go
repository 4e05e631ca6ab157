package transcript

// FindBalancedEnd scans forward from open, which must hold openCh, counting
// nesting depth of openCh/closeCh. It returns the index one past the matching
// close, or ok=false when the depth never returns to zero. The scan is purely
// character-counting; callers anchor it on positions known not to sit inside
// a quoted string with unbalanced brackets.
func FindBalancedEnd(s string, open int, openCh, closeCh byte) (int, bool) {
	if open < 0 || open >= len(s) || s[open] != openCh {
		return 0, false
	}
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// ScanQuotedString reads a double-quoted string starting at start, which must
// hold the opening quote. A quote preceded by an odd number of consecutive
// backslashes is escaped; an even count means the backslashes escape each
// other and the quote closes the string. Returns the raw (still-escaped)
// contents and the index one past the closing quote.
func ScanQuotedString(s string, start int) (string, int, bool) {
	if start < 0 || start >= len(s) || s[start] != '"' {
		return "", 0, false
	}
	for i := start + 1; i < len(s); i++ {
		if s[i] != '"' {
			continue
		}
		backslashes := 0
		for j := i - 1; j > start && s[j] == '\\'; j-- {
			backslashes++
		}
		if backslashes%2 == 0 {
			return s[start+1 : i], i + 1, true
		}
	}
	return "", 0, false
}
