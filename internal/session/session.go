// Package session wires together the external collaborators the
// compiler core depends on -- the lexer, the symbol-table store, the VM,
// and the builtin table -- into the one long-lived object cmd/calc
// drives: one shared Session processes every line typed at the REPL and
// every `read`-included file, keeping one symbol-table/globals pair
// alive across submissions while recompiling only the new input each
// time.
package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/stone39035605/calc/internal/builtins"
	"github.com/stone39035605/calc/internal/compiler"
	"github.com/stone39035605/calc/internal/config"
	"github.com/stone39035605/calc/internal/lexer"
	"github.com/stone39035605/calc/internal/symtab"
	"github.com/stone39035605/calc/internal/vm"
)

// Session owns the tables that must persist across every top-level line
// and nested `read`: the shared symbol table, string/
// element/object/function tables, and the VM's global slots. Each Feed
// builds a fresh *compiler.Compiler over these shared tables.
type Session struct {
	cfg *config.Config

	lex *lexer.Lexer
	sym *symtab.Table
	strs *symtab.Strings
	elems *symtab.Elements
	objs *symtab.Objects
	funcs *symtab.Functions
	builtins *symtab.Builtins

	vm *vm.VM
	out io.Writer
}

// New constructs a Session writing interactive/print/show output to out
// and configured by cfg (nil selects config.Default).
func New(out io.Writer, cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	builtins.ActiveConfig = cfg

	sym := symtab.New()
	strs := symtab.NewStrings()
	elems := symtab.NewElements()
	objs := symtab.NewObjects()
	funcs := symtab.NewFunctions()
	builtinTab := symtab.NewBuiltins(builtins.Names())

	lex := lexer.New("(init)", nil, cfg.MaxIncludeDepth, func(line int, msg string) {
		fmt.Fprintf(out, "%d: lex error: %s\n", line, msg)
	})

	machine := vm.New(objs, strs, out, nil)

	s := &Session{
		cfg: cfg, lex: lex, sym: sym, strs: strs, elems: elems,
		objs: objs, funcs: funcs, builtins: builtinTab, vm: machine, out: out,
	}
	return s
}

// newCompiler builds a fresh *compiler.Compiler sharing this Session's
// tables: the read-command loop is one Compiler.Feed call, and a Session
// issues a new Compiler per Feed so each submission gets its own
// ErrorList and current-function state while reusing the long-lived
// symbol tables and globals.
func (s *Session) newCompiler() *compiler.Compiler {
	return compiler.New(s.lex, s.sym, s.strs, s.elems, s.objs, s.funcs, s.builtins, compiler.Options{
		AllowRead: s.cfg.AllowRead,
		AllowWrite: s.cfg.AllowWrite,
		Limits: compiler.Limits{
			MaxErrors: s.cfg.MaxErrors,
			MaxIncludeDepth: s.cfg.MaxIncludeDepth,
			MaxDim: s.cfg.MaxDim,
		},
		Directives: s,
		Runtime: s.vm,
	})
}

// Feed compiles and runs one chunk of top-level input -- a REPL line or
// a whole file's contents -- returning any accumulated diagnostics
//.
func (s *Session) Feed(filename string, src []byte) error {
	c := s.newCompiler()
	return c.Feed(filename, src)
}

// --- compiler.Directives -----------------------------------------------

// OpenFile implements compiler.Directives for `read`: it resolves name
// relative to the process working directory. There is no search path;
// `cd` is the way to point the session somewhere else.
func (s *Session) OpenFile(name string) (data []byte, resolved string, err error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(".", name)
	}
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return data, abs, nil
}

// WriteGlobals implements compiler.Directives for `write`: it dumps
// every defined global's name and current value, one per line, the
// textual analogue of calc's `write` directive.
func (s *Session) WriteGlobals(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	for i := 0; i < s.sym.GlobalsSize(); i++ {
		v := s.vm.Global(i)
		if v == nil {
			continue
		}
		fmt.Fprintf(f, "%s = %s\n", s.sym.GlobalName(i), v.String())
	}
	return nil
}

// Chdir implements compiler.Directives for `cd`.
func (s *Session) Chdir(dir string) error {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = home
	}
	return os.Chdir(dir)
}

// Help implements compiler.Directives for `help`: a minimal topic dump.
// There is no per-topic help text.
func (s *Session) Help(name string) {
	if name == "" {
		fmt.Fprintln(s.out, "help topics: define, mat, obj, for, while, switch, read, write, cd, show, config")
		return
	}
	fmt.Fprintf(s.out, "no help available for %q\n", name)
}

// Config returns the session's live settings, so cmd/calc's CLI flags
// can override them before the first Feed.
func (s *Session) Config() *config.Config { return s.cfg }
