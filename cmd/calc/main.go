// calc is the command-line entry point: a urfave/cli app with a single
// Action that either executes the files named on the command line or,
// with no arguments, hands off to the bubbletea REPL in repl.go.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/stone39035605/calc/internal/config"
	"github.com/stone39035605/calc/internal/session"
	"github.com/stone39035605/calc/internal/vm"
)

func main() {
	app := &cli.App{
		Name:      "calc",
		Usage:     "arbitrary-precision calculator language",
		Version:   "dev",
		ArgsUsage: "[FILE...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-read", Usage: "disable the read directive (allow_read)"},
			&cli.BoolFlag{Name: "no-write", Usage: "disable the write directive (allow_write)"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "suppress the startup banner"},
			&cli.IntFlag{Name: "max-errors", Usage: "override max_errors from ~/.calcrc.yaml"},
			&cli.StringFlag{Name: "config", Usage: "path to the YAML config file", Value: config.DefaultPath()},
		},
		Action: mainAction,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func mainAction(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}
	if ctx.Bool("no-read") {
		cfg.AllowRead = false
	}
	if ctx.Bool("no-write") {
		cfg.AllowWrite = false
	}
	if ctx.IsSet("max-errors") {
		cfg.MaxErrors = ctx.Int("max-errors")
	}

	files := ctx.Args().Slice()
	if len(files) == 0 {
		return RunREPL(cfg, ctx.Bool("quiet"))
	}

	sess := session.New(os.Stdout, cfg)
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("calc: %w", err)
		}
		if err := sess.Feed(path, data); err != nil {
			var quit *vm.QuitError
			if errors.As(err, &quit) {
				if quit.Msg != "" {
					fmt.Fprintln(os.Stderr, quit.Msg)
				}
				return nil
			}
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return nil
}
