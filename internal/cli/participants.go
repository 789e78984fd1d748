package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tOgg1/tribe/internal/chat"
)

func newParticipantsCmd(a *app) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:     "participants",
		Aliases: []string{"who"},
		Short:   "List chat participants",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd, logToStderr)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			rt.session.Load(ctx)
			if !offline {
				if err := rt.session.RefreshParticipants(ctx); err != nil {
					return err
				}
			}

			participants := rt.session.Directory().All()
			if len(participants) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no participants")
				return nil
			}
			rows := make([][]string, 0, len(participants))
			for _, p := range participants {
				rows = append(rows, participantRow(p))
			}
			return writeTable(cmd.OutOrStdout(), []string{"Name", "Title", "Email", "ID"}, rows)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "list the stored roster without contacting the server")
	return cmd
}

func participantRow(p chat.Participant) []string {
	return []string{p.DisplayName(), dash(p.JobTitle), dash(p.Email), p.UUID}
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
