package main

// Span is a half-open byte-offset range [Start, End) into the source text.
type Span struct {
	Start int
	End   int
}

// Cover returns the smallest span containing both a and b.
func (a Span) Cover(b Span) Span {
	s := a
	if b.Start < s.Start {
		s.Start = b.Start
	}
	if b.End > s.End {
		s.End = b.End
	}
	return s
}

// lineCol converts a byte offset into a 1-based line and column.
func lineCol(src []byte, offset int) (line, col int) {
	line, col = 1, 1
	if offset > len(src) {
		offset = len(src)
	}
	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
