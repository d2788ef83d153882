package reader

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for wisp s-expressions
// ---------------------------------------------------------------------------

// TokenType identifies a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenLParen
	TokenRParen
	TokenQuote
	TokenInt
	TokenFloat
	TokenString
	TokenSymbol
	TokenError
)

// Token is one lexical token with its source position.
type Token struct {
	Type    TokenType
	Literal string
	Line    int // 1-based
	Col     int // 1-based
}

// Error is a read error carrying a source position.
type Error struct {
	Line int
	Col  int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

// Lexer tokenizes wisp source text.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size

	if r == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch != 0 && unicode.IsSpace(l.ch) {
			l.readChar()
		}
		if l.ch == ';' {
			for l.ch != 0 && l.ch != '\n' {
				l.readChar()
			}
			continue
		}
		return
	}
}

// isDelimiter reports characters that end a symbol or number.
func isDelimiter(r rune) bool {
	return r == 0 || r == '(' || r == ')' || r == ';' || r == '\'' || r == '"' || unicode.IsSpace(r)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	tok := Token{Line: l.line, Col: l.col}

	switch {
	case l.ch == 0:
		tok.Type = TokenEOF
	case l.ch == '(':
		tok.Type = TokenLParen
		tok.Literal = "("
		l.readChar()
	case l.ch == ')':
		tok.Type = TokenRParen
		tok.Literal = ")"
		l.readChar()
	case l.ch == '\'':
		tok.Type = TokenQuote
		tok.Literal = "'"
		l.readChar()
	case l.ch == '"':
		return l.readString(tok)
	case unicode.IsDigit(l.ch),
		(l.ch == '-' || l.ch == '+') && unicode.IsDigit(l.peekChar()):
		return l.readNumber(tok)
	default:
		return l.readSymbol(tok)
	}
	return tok
}

func (l *Lexer) readString(tok Token) Token {
	l.readChar() // consume opening quote

	var b strings.Builder
	for l.ch != '"' {
		if l.ch == 0 {
			tok.Type = TokenError
			tok.Literal = "unterminated string"
			return tok
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			default:
				tok.Type = TokenError
				tok.Literal = fmt.Sprintf("unknown escape \\%c", l.ch)
				return tok
			}
			l.readChar()
			continue
		}
		b.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing quote

	tok.Type = TokenString
	tok.Literal = b.String()
	return tok
}

func (l *Lexer) readNumber(tok Token) Token {
	start := l.pos
	if l.ch == '-' || l.ch == '+' {
		l.readChar()
	}
	isFloat := false
	for unicode.IsDigit(l.ch) || l.ch == '.' {
		if l.ch == '.' {
			if isFloat {
				break
			}
			isFloat = true
		}
		l.readChar()
	}
	tok.Literal = l.input[start:l.pos]
	if isFloat {
		tok.Type = TokenFloat
	} else {
		tok.Type = TokenInt
	}

	if !isDelimiter(l.ch) {
		tok.Type = TokenError
		tok.Literal = fmt.Sprintf("malformed number %q", tok.Literal+string(l.ch))
	}
	return tok
}

func (l *Lexer) readSymbol(tok Token) Token {
	start := l.pos
	for !isDelimiter(l.ch) {
		l.readChar()
	}
	tok.Type = TokenSymbol
	tok.Literal = l.input[start:l.pos]
	if tok.Literal == "" {
		tok.Type = TokenError
		tok.Literal = fmt.Sprintf("unexpected character %q", l.ch)
	}
	return tok
}
