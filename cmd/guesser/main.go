package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/antoniostano/guesser/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, config.ErrMissingCredential) {
			fmt.Fprintln(os.Stderr, "Set the API key for the selected completion provider (OPENAI_API_KEY by default).")
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "guesser",
		Short:         "Twenty-questions style guessing game backed by a language model",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if envFile == "" {
				return config.LoadDotEnv()
			}
			return config.LoadDotEnv(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment (default .env)")
	root.AddCommand(newServeCmd(), newPlayCmd())
	root.SetContext(context.Background())
	return root
}
