package compiler

import (
	"fmt"

	"github.com/stone39035605/calc/internal/token"
)

// Resync names the delimiter a diagnostic should resynchronize to: every
// error calls a single diagnostic sink with a resync token argument of
// none, COMMA, or SEMICOLON.
type Resync int

const (
	noResync Resync = iota
	resyncComma
	resyncSemicolon
)

// Diagnostic is one compiler error, positioned by file and line.
type Diagnostic struct {
	Pos token.Position
	Msg string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s", d.Pos, d.Msg)
}

// ErrorList accumulates diagnostics across a whole compilation, deduping
// repeated errors on the same source line. It does not stop compilation
// by itself when its configured budget is exceeded.
type ErrorList struct {
	items []*Diagnostic
	lastLine int
	lastFile string
	maxErrors int
}

// newErrorList creates an ErrorList that bails out (by returning true from
// Add) once more than maxErrors diagnostics have been recorded.
func newErrorList(maxErrors int) *ErrorList {
	return &ErrorList{maxErrors: maxErrors, lastLine: -1}
}

// Add records a diagnostic, discarding a second error reported on the same
// source line. Returns true once the configured error budget has been
// exceeded; errorAt ignores this result, so compiling goes on.
func (e *ErrorList) Add(pos token.Position, msg string) bool {
	if pos.Line == e.lastLine && pos.Filename == e.lastFile {
		return len(e.items) > e.maxErrors
	}
	e.lastLine, e.lastFile = pos.Line, pos.Filename
	e.items = append(e.items, &Diagnostic{Pos: pos, Msg: msg})
	return e.maxErrors > 0 && len(e.items) > e.maxErrors
}

// Count returns the number of diagnostics recorded.
func (e *ErrorList) Count() int { return len(e.items) }

// All returns the recorded diagnostics in report order.
func (e *ErrorList) All() []*Diagnostic { return e.items }

func (e *ErrorList) Error() string {
	switch len(e.items) {
	case 0:
		return "no errors"
	case 1:
		return e.items[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more errors)", e.items[0], len(e.items)-1)
	}
}

// Err returns an error representing the accumulated diagnostics, or nil.
func (e *ErrorList) Err() error {
	if len(e.items) == 0 {
		return nil
	}
	return e
}

// errorAt is the compiler's single diagnostic sink. It
// records the error, then resynchronizes the token stream to the given
// delimiter so a single bad statement doesn't cascade into unrelated
// errors for the rest of the function.
func (c *Compiler) errorAt(sync Resync, format string, args...interface{}) {
	pos := token.Position{Filename: c.lex.Filename(), Line: c.lex.Line()}
	c.errs.Add(pos, fmt.Sprintf(format, args...))
	switch sync {
	case resyncComma:
		c.advanceTo(token.Comma)
	case resyncSemicolon:
		c.advanceTo(token.Semicolon)
	}
}

// advanceTo consumes tokens until tok (exclusive), implementing the
// resync-to-delimiter half of the diagnostic sink. It also stops at a
// semicolon, a newline, a closing brace, or EOF so a missing delimiter inside a
// truncated block doesn't spin past the end of the function.
func (c *Compiler) advanceTo(tok token.Token) {
	for c.tok != token.EOF && c.tok != token.RBrace {
		if c.tok == tok {
			return
		}
		if c.tok == token.Newline || c.tok == token.Semicolon {
			return
		}
		c.next()
	}
}
