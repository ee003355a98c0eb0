package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/antoniostano/guesser/internal/game"
	"github.com/antoniostano/guesser/internal/session"
)

func newPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play one game in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := build(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup(res)

			interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
			g := res.NewGame(session.NewID())
			return runConsole(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), g, interactive)
		},
	}
}

// runConsole prints the banner and opening message, then submits each input
// line until a quit keyword or end of input.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, g *game.Game, interactive bool) error {
	prompts := g.Prompts()
	fmt.Fprintln(out, prompts.Banner)
	reply, _ := g.Start(ctx)
	fmt.Fprintln(out, reply)

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if prompts.IsQuit(line) {
			fmt.Fprintln(out, prompts.Farewell)
			return nil
		}
		reply, _ := g.Submit(ctx, line)
		fmt.Fprintln(out, reply)
	}
}
