// Package cli implements the tribe command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the tribe command line.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "tribe",
		Short:         "Terminal chat client",
		Long:          "tribe keeps a local, persisted copy of a chat room and syncs it with the server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/tribe/config.yaml)")
	flags.String("api-url", "", "chat API base URL")
	flags.String("storage", "", "storage backend: memory|file|sqlite|badger|bolt")
	flags.String("storage-path", "", "storage data directory")
	flags.String("log-level", "", "log level: debug|info|warn|error")
	flags.String("metrics-addr", "", "serve Prometheus metrics on host:port")

	cmd.AddCommand(
		newTUICmd(a),
		newLogCmd(a),
		newSendCmd(a),
		newOlderCmd(a),
		newParticipantsCmd(a),
		newReactionsCmd(a),
		newSyncCmd(a),
		newWatchCmd(a),
		newResetCmd(a),
		newConfigCmd(a),
	)
	return cmd
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"api-url":      "api.base_url",
	"storage":      "storage.backend",
	"storage-path": "storage.path",
	"log-level":    "logging.level",
	"metrics-addr": "metrics.addr",
}
