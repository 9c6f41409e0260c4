package main

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/swarmwatch/swarmwatch/internal/config"
	"github.com/swarmwatch/swarmwatch/internal/logging"
	"github.com/swarmwatch/swarmwatch/internal/tui/app"
	"github.com/swarmwatch/swarmwatch/internal/tui/client"
)

type tuiOptions struct {
	url     string
	token   string
	logFile string
}

func newTUICmd(g *globalOptions) *cobra.Command {
	o := &tuiOptions{}
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Watch a running swarmwatch server from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(g, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.url, "url", "ws://127.0.0.1:8080/ws", "WebSocket URL of the swarmwatch server")
	f.StringVar(&o.token, "token", "", "auth token, if the server requires one")
	f.StringVar(&o.logFile, "log-file", filepath.Join(config.Default().Client.DataDir, "tui.log"), "file the TUI logs to")
	return cmd
}

func runTUI(g *globalOptions, o *tuiOptions) error {
	logCfg := logging.Config{Level: "info", Format: "console", File: o.logFile}
	if g.logLevel != "" {
		logCfg.Level = g.logLevel
	}
	flush, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer flush()

	ws := client.NewWSClient(o.url, o.token)
	defer ws.Close()
	httpClient := client.NewHTTPClient(client.DeriveHTTPBase(o.url), o.token)

	p := tea.NewProgram(app.New(ws, httpClient), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
