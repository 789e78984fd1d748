package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOlderCmd(a *app) *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "older",
		Short: "Fetch older history into the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd, logToStderr)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			if err := rt.session.Start(ctx); err != nil {
				return err
			}
			store := rt.session.Store()
			total := 0
			for i := 0; i < pages && store.HasMore(); i++ {
				added, err := rt.session.LoadOlder(ctx)
				if err != nil {
					return err
				}
				total += added
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "loaded %d older messages (%d stored)\n", total, store.Len())
			if !store.HasMore() {
				fmt.Fprintln(out, "reached the start of the conversation")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "number of pages to fetch")
	return cmd
}
