// Package protocol implements the Ph command-line tokenizer and grammar
// (RFC 2378 §2.1 and Appendix C), turning one CR/LF-terminated input line
// into a typed Command or a parse error.
package protocol

import "errors"

// ErrSyntax is returned for unclosed quotes or empty input after tokenizing.
var ErrSyntax = errors.New("syntax error")

// Tokenize splits line into whitespace-separated tokens, honoring quoting
// and backslash escapes. Quotes are stripped, not kept. The escape table is:
// \n -> LF, \t -> TAB, \" -> ", \\ -> \, \<c> -> c.
func Tokenize(line string) ([]string, error) {
	var tokens []string
	var cur []rune
	inQuotes := false
	escaped := false

	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = cur[:0]
		}
	}

	for _, c := range line {
		switch {
		case escaped:
			switch c {
			case 'n':
				cur = append(cur, '\n')
			case 't':
				cur = append(cur, '\t')
			case '"':
				cur = append(cur, '"')
			case '\\':
				cur = append(cur, '\\')
			default:
				cur = append(cur, c)
			}
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inQuotes = !inQuotes
		case isSpace(c) && !inQuotes:
			flush()
		default:
			cur = append(cur, c)
		}
	}

	if inQuotes {
		return nil, ErrSyntax
	}
	flush()

	if len(tokens) == 0 {
		return nil, ErrSyntax
	}
	return tokens, nil
}

func isSpace(c rune) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// JoinTokens is the reciprocal of Tokenize: it quotes and escapes any
// token containing whitespace or a double quote, escapes backslashes in
// every other token, then joins with single spaces, so that Tokenize(JoinTokens(ts)) == ts for any token slice
// produced by Tokenize.
func JoinTokens(tokens []string) string {
	var b []byte
	for i, t := range tokens {
		if i > 0 {
			b = append(b, ' ')
		}
		if needsQuoting(t) {
			b = append(b, '"')
			for _, c := range t {
				switch c {
				case '"':
					b = append(b, '\\', '"')
				case '\\':
					b = append(b, '\\', '\\')
				default:
					b = append(b, string(c)...)
				}
			}
			b = append(b, '"')
		} else {
			for _, c := range t {
				if c == '\\' {
					b = append(b, '\\')
				}
				b = append(b, string(c)...)
			}
		}
	}
	return string(b)
}

func needsQuoting(t string) bool {
	if t == "" {
		return true
	}
	for _, c := range t {
		if isSpace(c) || c == '"' {
			return true
		}
	}
	return false
}
