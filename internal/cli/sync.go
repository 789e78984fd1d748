package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newSyncCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replace the stored timeline with a fresh copy from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd, logToStderr)
			if err != nil {
				return err
			}
			defer rt.Close()

			rt.session.Load(cmd.Context())
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				if all {
					return rt.session.LoadAll(ctx)
				}
				return rt.session.Refresh(ctx)
			})
			g.Go(func() error {
				return rt.session.RefreshParticipants(ctx)
			})
			if err := g.Wait(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d messages, %d participants\n",
				rt.session.Store().Len(), rt.session.Directory().Len())
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "fetch the complete history instead of the latest page")
	return cmd
}
