package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tOgg1/tribe/internal/tui"
)

var errNoTTY = errors.New("the chat UI requires an interactive terminal; use `tribe log` or `tribe watch` instead")

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd)
		},
	}
}

func (a *app) runTUI(cmd *cobra.Command) error {
	if !hasTTY() {
		return errNoTTY
	}
	rt, err := a.open(cmd, logToFileOnly)
	if err != nil {
		return err
	}
	defer rt.Close()

	return tui.Run(tui.Config{
		Session:        rt.session,
		Theme:          rt.cfg.TUI.Theme,
		SelfID:         rt.cfg.TUI.SelfID,
		ShowTimestamps: rt.cfg.TUI.ShowTimestamps,
		PollInterval:   rt.cfg.Sync.PollInterval,
	})
}
