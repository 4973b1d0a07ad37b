package jsgf

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokQuoted
	tokRule
	tokWeight
	tokTag
	tokHeader
	tokEquals
	tokSemi
	tokBar
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokStar
	tokPlus
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokWord, tokQuoted:
		return "token"
	case tokRule:
		return "rule name"
	case tokWeight:
		return "weight"
	case tokTag:
		return "tag"
	case tokHeader:
		return "header"
	default:
		return fmt.Sprintf("%q", punct[k])
	}
}

var punct = map[tokenKind]string{
	tokEquals: "=", tokSemi: ";", tokBar: "|",
	tokLParen: "(", tokRParen: ")", tokLBracket: "[", tokRBracket: "]",
	tokStar: "*", tokPlus: "+",
}

type position struct {
	Line, Col int
}

type token struct {
	kind tokenKind
	text string
	pos  position
}

type lexer struct {
	src  string
	off  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) errorf(pos position, format string, args ...any) error {
	return &SyntaxError{Line: pos.Line, Col: pos.Col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peekRune() rune {
	if l.off >= len(l.src) {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.off:])
	return r
}

func (l *lexer) advance() rune {
	r, n := utf8.DecodeRuneInString(l.src[l.off:])
	l.off += n
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) skipSpaceAndComments() error {
	for l.off < len(l.src) {
		switch {
		case strings.HasPrefix(l.src[l.off:], "//"):
			for l.off < len(l.src) && l.peekRune() != '\n' {
				l.advance()
			}
		case strings.HasPrefix(l.src[l.off:], "/*"):
			start := position{l.line, l.col}
			end := strings.Index(l.src[l.off+2:], "*/")
			if end < 0 {
				return l.errorf(start, "unterminated comment")
			}
			for stop := l.off + 2 + end + 2; l.off < stop; {
				l.advance()
			}
		case unicode.IsSpace(l.peekRune()):
			l.advance()
		default:
			return nil
		}
	}
	return nil
}

const specialChars = ";=|*+<>()[]{}/\""

func isWordRune(r rune) bool {
	return r >= 0 && !unicode.IsSpace(r) && !strings.ContainsRune(specialChars, r)
}

// readUntil consumes up to and including the closing delimiter and returns
// the text in between.
func (l *lexer) readUntil(pos position, closing rune, what string) (string, error) {
	var sb strings.Builder
	for {
		if l.off >= len(l.src) {
			return "", l.errorf(pos, "unterminated %s", what)
		}
		r := l.advance()
		if r == '\\' && l.off < len(l.src) {
			sb.WriteRune(l.advance())
			continue
		}
		if r == closing {
			return sb.String(), nil
		}
		sb.WriteRune(r)
	}
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	pos := position{l.line, l.col}
	if l.off >= len(l.src) {
		return token{kind: tokEOF, pos: pos}, nil
	}
	if strings.HasPrefix(l.src[l.off:], "#JSGF") {
		text, err := l.readUntil(pos, ';', "header")
		if err != nil {
			return token{}, err
		}
		return token{kind: tokHeader, text: text, pos: pos}, nil
	}
	r := l.advance()
	switch r {
	case '=':
		return token{kind: tokEquals, pos: pos}, nil
	case ';':
		return token{kind: tokSemi, pos: pos}, nil
	case '|':
		return token{kind: tokBar, pos: pos}, nil
	case '(':
		return token{kind: tokLParen, pos: pos}, nil
	case ')':
		return token{kind: tokRParen, pos: pos}, nil
	case '[':
		return token{kind: tokLBracket, pos: pos}, nil
	case ']':
		return token{kind: tokRBracket, pos: pos}, nil
	case '*':
		return token{kind: tokStar, pos: pos}, nil
	case '+':
		return token{kind: tokPlus, pos: pos}, nil
	case '<':
		text, err := l.readUntil(pos, '>', "rule name")
		if err != nil {
			return token{}, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return token{}, l.errorf(pos, "empty rule name")
		}
		return token{kind: tokRule, text: text, pos: pos}, nil
	case '/':
		text, err := l.readUntil(pos, '/', "weight")
		if err != nil {
			return token{}, err
		}
		return token{kind: tokWeight, text: strings.TrimSpace(text), pos: pos}, nil
	case '{':
		text, err := l.readUntil(pos, '}', "tag")
		if err != nil {
			return token{}, err
		}
		return token{kind: tokTag, text: text, pos: pos}, nil
	case '"':
		text, err := l.readUntil(pos, '"', "quoted token")
		if err != nil {
			return token{}, err
		}
		// a token is one word: grammar arcs and the FSG text format
		// have no way to hold an empty or multi-word one
		if text == "" {
			return token{}, l.errorf(pos, "empty quoted token")
		}
		if strings.IndexFunc(text, unicode.IsSpace) >= 0 {
			return token{}, l.errorf(pos, "quoted token %q contains whitespace", text)
		}
		return token{kind: tokQuoted, text: text, pos: pos}, nil
	}
	if !isWordRune(r) {
		return token{}, l.errorf(pos, "unexpected character %q", r)
	}
	var sb strings.Builder
	sb.WriteRune(r)
	for isWordRune(l.peekRune()) {
		sb.WriteRune(l.advance())
	}
	return token{kind: tokWord, text: sb.String(), pos: pos}, nil
}
