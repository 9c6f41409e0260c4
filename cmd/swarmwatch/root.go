package main

import (
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "swarmwatch",
		Short: "Live monitor for BitTorrent swarm connectivity",
		Long: `swarmwatch joins one torrent swarm at a time and reports, live, which
trackers it reaches and which peers it talks to.

Run "swarmwatch serve" to start the monitor and its HTTP/WebSocket API,
then "swarmwatch tui" to watch it from a terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "config.yaml", "path to config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(g), newTUICmd(g), newParseCmd())
	return root
}
