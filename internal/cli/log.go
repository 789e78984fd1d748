package cli

import (
	"github.com/spf13/cobra"

	"github.com/tOgg1/tribe/internal/timeline"
)

func newLogCmd(a *app) *cobra.Command {
	var (
		all     bool
		offline bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:     "log",
		Aliases: []string{"logs"},
		Short:   "Print the timeline",
		Long:    "Sync with the server and print the timeline, oldest first, grouped by day and author.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd, logToStderr)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			switch {
			case offline:
				rt.session.Load(ctx)
			case all:
				rt.session.Load(ctx)
				if err := rt.session.LoadAll(ctx); err != nil {
					return err
				}
				if err := rt.session.RefreshParticipants(ctx); err != nil {
					return err
				}
			default:
				if err := rt.session.Start(ctx); err != nil {
					return err
				}
			}

			msgs := rt.session.Store().Messages()
			if limit > 0 && len(msgs) > limit {
				msgs = msgs[:limit]
			}
			dir := rt.session.Directory()
			entries := timeline.Build(msgs, dir, timeline.Options{})
			out := cmd.OutOrStdout()
			return writeLines(out, newRenderer(rt.cfg, out).Timeline(entries, rt.session.Store().Get, dir))
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "fetch the complete history")
	cmd.Flags().BoolVar(&offline, "offline", false, "print the stored timeline without contacting the server")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most N of the newest messages")
	return cmd
}
