package minipg

import (
	"unicode/utf8"
)

// maxPlaceholder scans sql and returns the largest $n placeholder ordinal.
// Placeholders inside string literals, quoted identifiers, and comments are
// ignored. This function is only safe when standard_conforming_strings is on.
func maxPlaceholder(sql string) int {
	l := &sqlLexer{src: sql, stateFn: rawState}

	for l.stateFn != nil {
		l.stateFn = l.stateFn(l)
	}

	return l.max
}

type sqlLexer struct {
	src     string
	pos     int
	nested  int // multiline comment nesting level.
	stateFn stateFn
	max     int
}

type stateFn func(*sqlLexer) stateFn

func rawState(l *sqlLexer) stateFn {
	for {
		r, width := utf8.DecodeRuneInString(l.src[l.pos:])
		l.pos += width

		switch r {
		case 'e', 'E':
			if l.pos < len(l.src) && l.src[l.pos] == '\'' {
				l.pos++
				return escapeStringState
			}
		case '\'':
			return singleQuoteState
		case '"':
			return doubleQuoteState
		case '$':
			if l.pos < len(l.src) {
				next := l.src[l.pos]
				if '0' <= next && next <= '9' {
					return placeholderState
				}
			}
		case '-':
			if l.pos < len(l.src) && l.src[l.pos] == '-' {
				l.pos++
				return oneLineCommentState
			}
		case '/':
			if l.pos < len(l.src) && l.src[l.pos] == '*' {
				l.pos++
				return multilineCommentState
			}
		case utf8.RuneError:
			return nil
		}
	}
}

func singleQuoteState(l *sqlLexer) stateFn {
	for {
		r, width := utf8.DecodeRuneInString(l.src[l.pos:])
		l.pos += width

		switch r {
		case '\'':
			if l.pos < len(l.src) && l.src[l.pos] == '\'' {
				l.pos++
			} else {
				return rawState
			}
		case utf8.RuneError:
			return nil
		}
	}
}

func doubleQuoteState(l *sqlLexer) stateFn {
	for {
		r, width := utf8.DecodeRuneInString(l.src[l.pos:])
		l.pos += width

		switch r {
		case '"':
			if l.pos < len(l.src) && l.src[l.pos] == '"' {
				l.pos++
			} else {
				return rawState
			}
		case utf8.RuneError:
			return nil
		}
	}
}

// placeholderState consumes a placeholder ordinal. The $ must already have
// been consumed. The first byte must be a digit.
func placeholderState(l *sqlLexer) stateFn {
	num := 0

	for {
		if l.pos < len(l.src) {
			c := l.src[l.pos]
			if '0' <= c && c <= '9' {
				l.pos++
				num *= 10
				num += int(c - '0')
				continue
			}
		}

		if num > l.max {
			l.max = num
		}
		return rawState
	}
}

func escapeStringState(l *sqlLexer) stateFn {
	for {
		r, width := utf8.DecodeRuneInString(l.src[l.pos:])
		l.pos += width

		switch r {
		case '\\':
			_, width = utf8.DecodeRuneInString(l.src[l.pos:])
			l.pos += width
		case '\'':
			if l.pos < len(l.src) && l.src[l.pos] == '\'' {
				l.pos++
			} else {
				return rawState
			}
		case utf8.RuneError:
			return nil
		}
	}
}

func oneLineCommentState(l *sqlLexer) stateFn {
	for {
		r, width := utf8.DecodeRuneInString(l.src[l.pos:])
		l.pos += width

		switch r {
		case '\\':
			_, width = utf8.DecodeRuneInString(l.src[l.pos:])
			l.pos += width
		case '\n', '\r':
			return rawState
		case utf8.RuneError:
			return nil
		}
	}
}

func multilineCommentState(l *sqlLexer) stateFn {
	for {
		r, width := utf8.DecodeRuneInString(l.src[l.pos:])
		l.pos += width

		switch r {
		case '/':
			if l.pos < len(l.src) && l.src[l.pos] == '*' {
				l.pos++
				l.nested++
			}
		case '*':
			if l.pos < len(l.src) && l.src[l.pos] == '/' {
				l.pos++
				if l.nested == 0 {
					return rawState
				}
				l.nested--
			}
		case utf8.RuneError:
			return nil
		}
	}
}
