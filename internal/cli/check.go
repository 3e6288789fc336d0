package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const checkTimeout = 30 * time.Second

var errChecksFailed = errors.New("credential check failed")

func newCheckCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the language model and lookup credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.check(cmd.Context())
		},
	}
}

func (r *runner) check(ctx context.Context) error {
	cfg, log, err := r.setup()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := r.deps.BuildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	checkers, err := a.CredentialCheckers()
	if err != nil {
		return err
	}

	failed := 0
	for _, c := range checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.CheckCredentials(cctx)
		cancel()
		if err != nil {
			failed++
			fmt.Fprintf(r.deps.Stdout, "%-8s FAILED  %v\n", c.Name(), err)
			continue
		}
		fmt.Fprintf(r.deps.Stdout, "%-8s OK\n", c.Name())
	}
	if failed > 0 {
		return fmt.Errorf("%w for %d of %d services", errChecksFailed, failed, len(checkers))
	}
	return nil
}
