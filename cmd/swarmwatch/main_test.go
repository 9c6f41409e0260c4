package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swarmwatch/swarmwatch/internal/btclient"
	"github.com/swarmwatch/swarmwatch/internal/config"
	"github.com/swarmwatch/swarmwatch/internal/mock"
)

const sintelHash = "c9e15763f722f23e98a29decdfae341b98d53056"

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n  host: 0.0.0.0\nlog:\n  level: warn\n"), 0o644))

	tests := []struct {
		name     string
		args     []string
		wantPort int
		wantHost string
		wantLvl  string
	}{
		{"file only", nil, 9000, "0.0.0.0", "warn"},
		{"port flag", []string{"--port", "9100"}, 9100, "0.0.0.0", "warn"},
		{"explicit zero port", []string{"--port", "0"}, 0, "0.0.0.0", "warn"},
		{"host and level", []string{"--host", "127.0.0.1", "--log-level", "debug"}, 9000, "127.0.0.1", "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &globalOptions{configPath: path}
			cmd := newServeCmd(g)
			cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "")
			require.NoError(t, cmd.ParseFlags(tt.args))

			o := &serveOptions{}
			o.port, _ = cmd.Flags().GetInt("port")
			o.host, _ = cmd.Flags().GetString("host")
			cfg, err := loadConfig(g, cmd.Flags(), o)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPort, cfg.Server.Port)
			assert.Equal(t, tt.wantHost, cfg.Server.Host)
			assert.Equal(t, tt.wantLvl, cfg.Log.Level)
		})
	}
}

func TestLoadConfigRejectsBadLevel(t *testing.T) {
	g := &globalOptions{configPath: filepath.Join(t.TempDir(), "absent.yaml"), logLevel: "loud"}
	cmd := newServeCmd(g)
	_, err := loadConfig(g, cmd.Flags(), &serveOptions{})
	assert.Error(t, err)
}

func TestAddOptionsFollowDownloadSetting(t *testing.T) {
	tests := []struct {
		name                 string
		noUpload, noDownload bool
	}{
		{"uploads off, downloads on", true, false},
		{"uploads on, downloads off", false, true},
		{"both off", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Client.NoUpload = tt.noUpload
			cfg.Client.NoDownload = tt.noDownload
			assert.Equal(t, tt.noDownload, addOptions(cfg).NoDownload)
		})
	}
}

func TestNewSwarmClientMock(t *testing.T) {
	c, err := newSwarmClient(nil, &serveOptions{mock: true, mockTick: 10 * time.Millisecond})
	require.NoError(t, err)
	defer c.Close()
	assert.IsType(t, &mock.Client{}, c)
}

func TestPrintIdentifier(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printIdentifier(&buf, "magnet:?xt=urn:btih:"+sintelHash+"&tr=udp%3A%2F%2Fexplodie.org%3A6969"))
	assert.Equal(t, "info hash: "+sintelHash+"\nsource:    magnet\ntracker:   udp://explodie.org:6969\n", buf.String())

	assert.ErrorIs(t, printIdentifier(&buf, "nope"), btclient.ErrBadIdentifier)
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "tui", "parse"}, names)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"parse", sintelHash})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "info hash: "+sintelHash)
}
