package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/okian/plusolver/internal/adapters/mq/worker"
	service "github.com/okian/plusolver/internal/app"
	"github.com/okian/plusolver/internal/domain/targeting"
)

type runFlags struct {
	target        int
	fullKnowledge bool
	maxAttempts   int
	useSSO        bool
	email         string
}

func newRunCommand(e *env) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Answer one quiz, or keep answering until 100% knowledge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var target *int
			if cmd.Flags().Changed("target") {
				t := f.target
				target = &t
			}
			if err := targeting.ValidateTarget(target); err != nil {
				return err
			}
			return e.run(cmd.Context(), service.RunOptions{
				Target:        target,
				FullKnowledge: f.fullKnowledge,
				MaxAttempts:   f.maxAttempts,
			}, f)
		},
	}
	cmd.Flags().IntVar(&f.target, "target", 100, "percent of items to answer correctly (0-100)")
	cmd.Flags().BoolVar(&f.fullKnowledge, "full-knowledge", false, "repeat attempts until the vendor reports 100% knowledge")
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 0, "safety bound for --full-knowledge (default from config)")
	cmd.Flags().BoolVar(&f.useSSO, "sso", false, "log in through the browser SSO instead of email and password")
	cmd.Flags().StringVar(&f.email, "email", "", "operator email or SSO user (prompted when empty)")
	return cmd
}

// run streams one run through a relay into the console. An interrupt stops
// the service, which cancels the run; its error and closed events are still
// printed.
func (e *env) run(ctx context.Context, opts service.RunOptions, f runFlags) error {
	auth, err := e.authenticator(ctx, f.useSSO, f.email)
	if err != nil {
		return err
	}

	svc, err := e.openService(ctx, opts.MaxAttempts)
	if err != nil {
		return err
	}
	defer svc.Stop()

	run, err := svc.Stream(ctx, auth, opts)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, svc.Stop)
	defer stop()

	console := NewConsole(e.out)
	relay := worker.NewRelay(run.Events, console,
		worker.WithName("console"),
		worker.WithPollInterval(svc.PollInterval()),
	)
	if err := relay.Run(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	return console.Finish()
}
