package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove the stored timeline and roster for the configured server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd, logToStderr)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			if err := errors.Join(rt.session.Store().Clear(ctx), rt.session.Directory().Clear(ctx)); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared local state for %s\n", rt.client.BaseURL())
			return nil
		},
	}
}
