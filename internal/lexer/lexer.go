// Package lexer implements the token source the compiler drives:
// gettoken/rescantoken/nextchar, a save/restore token mode, and a bounded
// file-inclusion stack for nested `read`.
//
// The lexer is an external collaborator of the compiler core: it owns no
// symbol, label, or opcode knowledge and is independently testable. It
// scans rune at a time with a one-rune lookahead and reports lexical
// errors through a caller-supplied handler.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/stone39035605/calc/internal/token"
)

const eof = -1

// ErrorHandler receives a lexical error at a given line.
type ErrorHandler func(line int, msg string)

type frame struct {
	filename string
	src []byte
	offset int
	readOff int
	ch rune
	line int

	// one-token pushback
	hasPushback bool
	pbTok token.Token
	pbLit string
	pbLine int
}

// Lexer is the token source consumed by the compiler.
type Lexer struct {
	frames []*frame
	errorHandler ErrorHandler
	errorCount int
	mode token.Mode
	once map[string]bool // files already read, by absolute path (checked by read -once)
	maxDepth int
}

// New creates a Lexer over an initial top-level source buffer.
func New(filename string, src []byte, maxDepth int, h ErrorHandler) *Lexer {
	l := &Lexer{
		errorHandler: h,
		once: make(map[string]bool),
		maxDepth: maxDepth,
	}
	l.PushFile(filename, src)
	return l
}

// PushFile begins scanning a new nested source, as used by the `read`
// directive. Returns false if the maximum include depth would be exceeded.
func (l *Lexer) PushFile(filename string, src []byte) bool {
	if l.maxDepth > 0 && len(l.frames) >= l.maxDepth {
		return false
	}
	f := &frame{filename: filename, src: src, line: 1, ch: ' '}
	l.frames = append(l.frames, f)
	l.advance(f)
	return true
}

// PopFile ends the current nested source and resumes the enclosing one.
// A no-op at the outermost level.
func (l *Lexer) PopFile() {
	if len(l.frames) > 1 {
		l.frames = l.frames[:len(l.frames)-1]
	}
}

// Depth returns the current include-stack depth (1 at top level).
func (l *Lexer) Depth() int { return len(l.frames) }

// MarkOnce records filename as already read; WasReadOnce reports whether
// it was recorded.
func (l *Lexer) MarkOnce(filename string) { l.once[filename] = true }

// WasReadOnce reports whether filename was recorded by an earlier MarkOnce.
func (l *Lexer) WasReadOnce(filename string) bool { return l.once[filename] }

func (l *Lexer) cur() *frame { return l.frames[len(l.frames)-1] }

// SetMode installs a new token mode and returns the previous one, so
// callers can restore it on every exit path of a compound construct.
func (l *Lexer) SetMode(m token.Mode) token.Mode {
	old := l.mode
	l.mode = m
	return old
}

// Mode returns the current token mode.
func (l *Lexer) Mode() token.Mode { return l.mode }

// Line returns the current line number in the active source.
func (l *Lexer) Line() int { return l.cur().line }

// Filename returns the name of the active source.
func (l *Lexer) Filename() string { return l.cur().filename }

// ErrorCount returns the number of lexical errors seen so far.
func (l *Lexer) ErrorCount() int { return l.errorCount }

func (l *Lexer) errorf(line int, format string, args...interface{}) {
	l.errorCount++
	if l.errorHandler != nil {
		l.errorHandler(line, fmt.Sprintf(format, args...))
	}
}

// --- low-level scanning -----------------------------------------------

func (l *Lexer) advance(f *frame) {
	if f.readOff >= len(f.src) {
		f.offset = len(f.src)
		f.ch = eof
		return
	}
	f.offset = f.readOff
	if f.ch == '\n' {
		f.line++
	}
	r, w := rune(f.src[f.readOff]), 1
	switch {
	case r == 0:
		l.errorf(f.line, "illegal NUL byte")
	case r >= utf8.RuneSelf:
		r, w = utf8.DecodeRune(f.src[f.readOff:])
		if r == utf8.RuneError && w == 1 {
			l.errorf(f.line, "illegal UTF-8 encoding")
		}
	}
	f.readOff += w
	f.ch = r
}

// PeekByte returns the first character not yet part of any token, or -1
// at EOF, without consuming anything. Used only for the one-character
// `label:` lookahead: right after an identifier token it sees the
// character immediately following the identifier text, with no
// whitespace skipped, so `done:` is a label candidate and `done :` is
// not.
func (l *Lexer) PeekByte() int {
	f := l.cur()
	if f.ch == eof {
		return -1
	}
	return int(f.ch)
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return unicode.IsDigit(ch)
}

// --- token scanning ------------------------------------------------------

// Rescan pushes back exactly one token, to be returned again by the next
// NextToken call. At most one token of pushback is supported.
func (l *Lexer) Rescan(tok token.Token, lit string) {
	f := l.cur()
	f.hasPushback = true
	f.pbTok = tok
	f.pbLit = lit
	f.pbLine = f.line
}

// NextToken scans and returns the next token and its literal text.
func (l *Lexer) NextToken() (token.Token, string) {
	f := l.cur()
	if f.hasPushback {
		f.hasPushback = false
		f.line = f.pbLine
		return f.pbTok, f.pbLit
	}
	return l.scan(f)
}

func (l *Lexer) scan(f *frame) (token.Token, string) {
	l.skipWhitespace(f)

	switch {
	case f.ch == eof:
		return token.EOF, ""
	case isLetter(f.ch):
		lit := l.scanIdentifier(f)
		if l.mode == token.ALLSYMS {
			return token.Ident, lit
		}
		return token.Lookup(lit), lit
	case isDigit(f.ch):
		return l.scanNumber(f)
	}

	ch := f.ch
	l.advance(f)

	switch ch {
	case '\n':
		return token.Newline, "\n"
	case '"', '\'':
		return token.String, l.scanString(f, ch)
	case '+':
		if f.ch == '+' {
			l.advance(f)
			return token.Inc, "++"
		}
		if f.ch == '=' {
			l.advance(f)
			return token.AddAssign, "+="
		}
		return token.Add, "+"
	case '-':
		if f.ch == '-' {
			l.advance(f)
			return token.Dec, "--"
		}
		if f.ch == '=' {
			l.advance(f)
			return token.SubAssign, "-="
		}
		if f.ch == '>' {
			l.advance(f)
			return token.Arrow, "->"
		}
		return token.Sub, "-"
	case '*':
		if f.ch == '*' {
			l.advance(f)
			return token.Power, "**"
		}
		if f.ch == '=' {
			l.advance(f)
			return token.MulAssign, "*="
		}
		return token.Mul, "*"
	case '/':
		if f.ch == '/' {
			l.advance(f)
			if f.ch == '=' {
				l.advance(f)
				return token.QuoquoAssign, "//="
			}
			return token.Quoquo, "//"
		}
		if f.ch == '=' {
			l.advance(f)
			return token.QuoAssign, "/="
		}
		return token.Quo, "/"
	case '%':
		if f.ch == '=' {
			l.advance(f)
			return token.ModAssign, "%="
		}
		return token.Mod, "%"
	case '^':
		if f.ch == '=' {
			l.advance(f)
			return token.XorAssign, "^="
		}
		return token.Power, "^"
	case '&':
		if f.ch == '&' {
			l.advance(f)
			return token.LAnd, "&&"
		}
		if f.ch == '=' {
			l.advance(f)
			return token.AndAssign, "&="
		}
		return token.And, "&"
	case '|':
		if f.ch == '|' {
			l.advance(f)
			return token.LOr, "||"
		}
		if f.ch == '=' {
			l.advance(f)
			return token.OrAssign, "|="
		}
		return token.Or, "|"
	case '#':
		if f.ch == '=' {
			l.advance(f)
			return token.HashAssign, "#="
		}
		return token.Xor, "#"
	case '~':
		if f.ch == '=' {
			l.advance(f)
			return token.CompAssign, "~="
		}
		return token.Comp, "~"
	case '\\':
		if f.ch == '=' {
			l.advance(f)
			return token.BackAssign, "\\="
		}
		return token.Backslash, "\\"
	case '!':
		if f.ch == '=' {
			l.advance(f)
			return token.NotEqual, "!="
		}
		return token.Not, "!"
	case '=':
		if f.ch == '=' {
			l.advance(f)
			return token.Equal, "=="
		}
		return token.Assign, "="
	case '<':
		if f.ch == '<' {
			l.advance(f)
			if f.ch == '=' {
				l.advance(f)
				return token.ShlAssign, "<<="
			}
			return token.Shl, "<<"
		}
		if f.ch == '=' {
			l.advance(f)
			return token.LessEq, "<="
		}
		return token.Less, "<"
	case '>':
		if f.ch == '>' {
			l.advance(f)
			if f.ch == '=' {
				l.advance(f)
				return token.ShrAssign, ">>="
			}
			return token.Shr, ">>"
		}
		if f.ch == '=' {
			l.advance(f)
			return token.GreaterEq, ">="
		}
		return token.Greater, ">"
	case '`':
		return token.Backquote, "`"
	case '?':
		return token.Question, "?"
	case ':':
		return token.Colon, ":"
	case ',':
		return token.Comma, ","
	case ';':
		return token.Semicolon, ";"
	case '.':
		return token.Period, "."
	case '(':
		return token.LParen, "("
	case ')':
		return token.RParen, ")"
	case '{':
		return token.LBrace, "{"
	case '}':
		return token.RBrace, "}"
	case '[':
		if f.ch == '[' {
			l.advance(f)
			return token.DoubleLBrack, "[["
		}
		return token.LBrack, "["
	case ']':
		if f.ch == ']' {
			l.advance(f)
			return token.DoubleRBrack, "]]"
		}
		return token.RBrack, "]"
	}

	l.errorf(f.line, "illegal character %#U", ch)
	return token.Illegal, string(ch)
}

func (l *Lexer) skipWhitespace(f *frame) {
	for f.ch == ' ' || f.ch == '\t' || f.ch == '\r' ||
		(f.ch == '\n' && l.mode == token.DEFAULT) {
		l.advance(f)
	}
	for f.ch == '/' && l.peekIsCommentStart(f) {
		l.skipComment(f)
		for f.ch == ' ' || f.ch == '\t' || f.ch == '\r' ||
			(f.ch == '\n' && l.mode == token.DEFAULT) {
			l.advance(f)
		}
	}
}

func (l *Lexer) peekIsCommentStart(f *frame) bool {
	return f.readOff < len(f.src) && f.src[f.readOff] == '*'
}

func (l *Lexer) skipComment(f *frame) {
	l.advance(f) // consume '/'
	l.advance(f) // consume '*'
	for {
		if f.ch == eof {
			l.errorf(f.line, "comment not terminated")
			return
		}
		if f.ch == '*' {
			l.advance(f)
			if f.ch == '/' {
				l.advance(f)
				return
			}
			continue
		}
		l.advance(f)
	}
}

func (l *Lexer) scanIdentifier(f *frame) string {
	var b strings.Builder
	for isLetter(f.ch) || isDigit(f.ch) {
		b.WriteRune(f.ch)
		l.advance(f)
	}
	return b.String()
}

func (l *Lexer) scanNumber(f *frame) (token.Token, string) {
	var b strings.Builder
	for isDigit(f.ch) {
		b.WriteRune(f.ch)
		l.advance(f)
	}
	if f.ch == '.' {
		b.WriteRune(f.ch)
		l.advance(f)
		for isDigit(f.ch) {
			b.WriteRune(f.ch)
			l.advance(f)
		}
	}
	if f.ch == 'e' || f.ch == 'E' {
		b.WriteRune(f.ch)
		l.advance(f)
		if f.ch == '+' || f.ch == '-' {
			b.WriteRune(f.ch)
			l.advance(f)
		}
		for isDigit(f.ch) {
			b.WriteRune(f.ch)
			l.advance(f)
		}
	}
	if f.ch == 'i' {
		l.advance(f)
		return token.Imag, b.String()
	}
	return token.Number, b.String()
}

func (l *Lexer) scanString(f *frame, quote rune) string {
	var b strings.Builder
	for {
		if f.ch == eof || f.ch == '\n' {
			l.errorf(f.line, "string not terminated")
			break
		}
		if f.ch == quote {
			l.advance(f)
			break
		}
		if f.ch == '\\' {
			l.advance(f)
			b.WriteRune(l.scanEscape(f))
			continue
		}
		b.WriteRune(f.ch)
		l.advance(f)
	}
	return b.String()
}

func (l *Lexer) scanEscape(f *frame) rune {
	ch := f.ch
	l.advance(f)
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '\\':
		return '\\'
	case '"':
		return '"'
	case '\'':
		return '\''
	default:
		return ch
	}
}

// ParseNumber interprets raw numeric literal text as produced by Number
// tokens. Leaves interpretation of the float/int distinction here rather
// than in the scanner, mirroring calc's constant-table interning (the
// compiler decides how the value is stored, the lexer only tokenizes it).
func ParseNumber(lit string) (isInt bool, i int64, f float64, err error) {
	if !strings.ContainsAny(lit, ".eE") {
		i, err = strconv.ParseInt(lit, 10, 64)
		if err == nil {
			return true, i, 0, nil
		}
	}
	f, err = strconv.ParseFloat(lit, 64)
	return false, 0, f, err
}
