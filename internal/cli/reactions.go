package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newReactionsCmd(a *app) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "reactions MESSAGE_ID",
		Short: "Show who reacted to a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd, logToStderr)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			id := strings.TrimSpace(args[0])
			if offline {
				rt.session.Load(ctx)
			} else if err := rt.session.Start(ctx); err != nil {
				return err
			}
			msg, ok := rt.session.Store().Get(id)
			if !ok {
				return fmt.Errorf("message %s not found in the stored timeline", id)
			}
			out := cmd.OutOrStdout()
			return writeLines(out, newRenderer(rt.cfg, out).ReactionSheet(msg, rt.session.Directory()))
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "use the stored timeline without contacting the server")
	return cmd
}
