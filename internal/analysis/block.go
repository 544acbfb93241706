package analysis

// BlockFinder locates the end of the brace-delimited block that begins at or
// after start. The returned offset points at the closing brace.
type BlockFinder interface {
	FindEnclosingBlock(text string, start int) (end int, ok bool)
}

// BraceScanner counts raw braces. It does not understand strings, comments
// or template literals, so braces inside them shift the result.
type BraceScanner struct{}

func (BraceScanner) FindEnclosingBlock(text string, start int) (int, bool) {
	if start < 0 || start >= len(text) {
		return 0, false
	}
	depth := 0
	opened := false
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
			opened = true
		case '}':
			if !opened {
				continue
			}
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
