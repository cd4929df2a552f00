package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stone39035605/calc/internal/token"
)

func collect(t *testing.T, src string) []token.Token {
	t.Helper()
	l := New("(test)", []byte(src), 19, func(line int, msg string) {
		t.Fatalf("unexpected lex error at line %d: %s", line, msg)
	})
	var toks []token.Token
	for {
		tok, _ := l.NextToken()
		toks = append(toks, tok)
		if tok == token.EOF {
			return toks
		}
	}
}

func TestScanOperatorsPreferLongestMatch(t *testing.T) {
	toks := collect(t, "<<= >>= //= ++ -- -> ** && ||")
	require.Equal(t, []token.Token{
		token.ShlAssign, token.ShrAssign, token.QuoquoAssign,
		token.Inc, token.Dec, token.Arrow, token.Power,
		token.LAnd, token.LOr, token.EOF,
	}, toks)
}

func TestScanDoubleBrackets(t *testing.T) {
	toks := collect(t, "[[ ]] [ ]")
	require.Equal(t, []token.Token{
		token.DoubleLBrack, token.DoubleRBrack, token.LBrack, token.RBrack, token.EOF,
	}, toks)
}

func TestNewlineIgnoredInDefaultModeHonoredInNewlinesMode(t *testing.T) {
	l := New("(test)", []byte("1\n2"), 19, func(int, string) {})
	tok, _ := l.NextToken()
	require.Equal(t, token.Number, tok)
	tok, _ = l.NextToken()
	require.Equal(t, token.Number, tok, "default mode skips the newline between literals")

	l2 := New("(test)", []byte("1\n2"), 19, func(int, string) {})
	l2.SetMode(token.NEWLINES)
	tok, _ = l2.NextToken()
	require.Equal(t, token.Number, tok)
	tok, _ = l2.NextToken()
	require.Equal(t, token.Newline, tok, "NEWLINES mode must surface the newline as a token")
}

func TestAllSymsModeReturnsKeywordsAsIdent(t *testing.T) {
	l := New("(test)", []byte("for"), 19, func(int, string) {})
	l.SetMode(token.ALLSYMS)
	tok, lit := l.NextToken()
	require.Equal(t, token.Ident, tok)
	require.Equal(t, "for", lit)
}

func TestSetModeReturnsPrevious(t *testing.T) {
	l := New("(test)", []byte(""), 19, func(int, string) {})
	prev := l.SetMode(token.NEWLINES)
	require.Equal(t, token.DEFAULT, prev)
	prev = l.SetMode(token.DEFAULT)
	require.Equal(t, token.NEWLINES, prev)
}

func TestRescanPushesBackExactlyOneToken(t *testing.T) {
	l := New("(test)", []byte("1 2 3"), 19, func(int, string) {})
	tok1, lit1 := l.NextToken()
	require.Equal(t, token.Number, tok1)
	require.Equal(t, "1", lit1)

	l.Rescan(tok1, lit1)
	again, lit := l.NextToken()
	require.Equal(t, tok1, again)
	require.Equal(t, lit1, lit)

	next, _ := l.NextToken()
	require.Equal(t, token.Number, next, "pushback consumed, scanning resumes normally")
}

func TestPeekByteDoesNotConsume(t *testing.T) {
	l := New("(test)", []byte("ab"), 19, func(int, string) {})
	require.Equal(t, int('a'), l.PeekByte())
	tok, lit := l.NextToken()
	require.Equal(t, token.Ident, tok)
	require.Equal(t, "ab", lit)
}

func TestPeekByteSeesColonRightAfterIdentifier(t *testing.T) {
	l := New("(test)", []byte("done: x"), 19, func(int, string) {})
	tok, lit := l.NextToken()
	require.Equal(t, token.Ident, tok)
	require.Equal(t, "done", lit)
	require.Equal(t, int(':'), l.PeekByte(), "the label lookahead must see the ':' glued to the identifier")

	l2 := New("(test)", []byte("done : x"), 19, func(int, string) {})
	tok, _ = l2.NextToken()
	require.Equal(t, token.Ident, tok)
	require.Equal(t, int(' '), l2.PeekByte(), "a spaced colon is not a label definition")
}

func TestBackquoteScansAsItsOwnToken(t *testing.T) {
	toks := collect(t, "`a")
	require.Equal(t, []token.Token{token.Backquote, token.Ident, token.EOF}, toks)
}

func TestStringEscapes(t *testing.T) {
	l := New("(test)", []byte(`"a\nb\tc\\d\"e"`), 19, func(int, string) {})
	tok, lit := l.NextToken()
	require.Equal(t, token.String, tok)
	require.Equal(t, "a\nb\tc\\d\"e", lit)
}

func TestCommentsAreSkipped(t *testing.T) {
	toks := collect(t, "1 /* a comment\nspanning lines */ 2")
	require.Equal(t, []token.Token{token.Number, token.Number, token.EOF}, toks)
}

func TestUnterminatedCommentReportsError(t *testing.T) {
	var gotErr bool
	l := New("(test)", []byte("1 /* never closed"), 19, func(line int, msg string) {
		gotErr = true
	})
	for {
		tok, _ := l.NextToken()
		if tok == token.EOF {
			break
		}
	}
	require.True(t, gotErr)
}

func TestImaginaryLiteralSuffix(t *testing.T) {
	l := New("(test)", []byte("3.5i"), 19, func(int, string) {})
	tok, lit := l.NextToken()
	require.Equal(t, token.Imag, tok)
	require.Equal(t, "3.5", lit)
}

func TestPushFileRespectsMaxDepth(t *testing.T) {
	l := New("(top)", []byte(""), 2, func(int, string) {})
	require.True(t, l.PushFile("nested1", []byte("")))
	require.False(t, l.PushFile("nested2", []byte("")), "depth 2 already reached with top+nested1")
	require.Equal(t, 2, l.Depth())
}

func TestPopFileIsNoopAtTopLevel(t *testing.T) {
	l := New("(top)", []byte(""), 19, func(int, string) {})
	l.PopFile()
	require.Equal(t, 1, l.Depth())
}

func TestMarkOnceAndWasReadOnce(t *testing.T) {
	l := New("(top)", []byte(""), 19, func(int, string) {})
	require.False(t, l.WasReadOnce("/a/b.cal"))
	l.MarkOnce("/a/b.cal")
	require.True(t, l.WasReadOnce("/a/b.cal"))
}

func TestParseNumberIntVsFloat(t *testing.T) {
	isInt, i, _, err := ParseNumber("42")
	require.NoError(t, err)
	require.True(t, isInt)
	require.Equal(t, int64(42), i)

	isInt, _, f, err := ParseNumber("3.25")
	require.NoError(t, err)
	require.False(t, isInt)
	require.Equal(t, 3.25, f)

	isInt, _, f, err = ParseNumber("1e3")
	require.NoError(t, err)
	require.False(t, isInt)
	require.Equal(t, 1000.0, f)
}

func TestKeywordLookup(t *testing.T) {
	toks := collect(t, "if else for while do switch case default break continue goto return local global static mat obj print quit abort show define undefine read write cd help")
	for _, tok := range toks[:len(toks)-1] {
		require.NotEqual(t, token.Ident, tok, "keyword text must not lex as a plain identifier")
	}
}
