// Package cli implements the plusolve operator commands.
//
// Commands:
//   - run: answer a quiz to a target score, optionally until 100% knowledge
//   - token: capture a bearer token through the browser SSO login
//   - cache: inspect or seed the answer cache
//   - watch: drive a running relay's stream endpoint
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/plusolver/internal/config"
	"github.com/okian/plusolver/pkg/logger"
)

const defaultCLILogLevel = "warn"

// env is shared by all commands once the root pre-run has loaded config.
type env struct {
	cfg    *config.Config
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	prompt *Prompter
}

// NewRootCommand builds the plusolve command tree. Prompts are read from in
// and written to errOut; results go to out.
func NewRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	e := &env{in: in, out: out, errOut: errOut}
	var (
		configPath string
		logLevel   string
	)

	root := &cobra.Command{
		Use:           "plusolve",
		Short:         "Answer easyPLU quizzes to a chosen score",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				if err := os.Setenv("PLUSOLVER_CONFIG", configPath); err != nil {
					return err
				}
			}
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			if err := logger.Configure(e.errOut, cfg.LogFormat); err != nil {
				return err
			}
			if err := logger.SetLevelString(logLevel); err != nil {
				return err
			}
			e.cfg = cfg
			e.prompt = NewPrompter(e.in, e.errOut)
			return nil
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides PLUSOLVER_CONFIG)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultCLILogLevel, "log level: debug, info, warn, error")

	root.AddCommand(
		newRunCommand(e),
		newTokenCommand(e),
		newCacheCommand(e),
		newWatchCommand(e),
	)
	return root
}

// Execute runs the command tree against the process streams and returns the
// exit code.
func Execute(ctx context.Context) int {
	cmd := NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
