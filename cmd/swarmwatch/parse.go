package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/swarmwatch/swarmwatch/internal/btclient"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <identifier>",
		Short: "Show how an identifier would be resolved, without joining the swarm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printIdentifier(cmd.OutOrStdout(), args[0])
		},
	}
}

func printIdentifier(w io.Writer, identifier string) error {
	src, err := btclient.ParseIdentifier(identifier)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "info hash: %s\n", src.InfoHash)
	switch {
	case src.MetaInfo != nil:
		fmt.Fprintln(w, "source:    torrent file")
	default:
		fmt.Fprintln(w, "source:    magnet")
	}
	for _, tr := range src.Trackers() {
		fmt.Fprintf(w, "tracker:   %s\n", tr)
	}
	return nil
}
