package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitechniques/llclient/internal/channels"
	"github.com/hitechniques/llclient/internal/client"
	"github.com/hitechniques/llclient/internal/protocol"
)

// resetFlags restores the package-level flag variables after a test
func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		configPath, logLevel, logFile = "", "", ""
		metricsAddr, instanceName = "", ""
		subscriptions = nil
		plainMode, forceInit = false, false
	})
}

func TestLoadConfig_Overrides(t *testing.T) {
	resetFlags(t)

	configPath = filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`server:
  host: from-file
subscriptions:
  - name: volts
    decimation: 2
`), 0600))

	metricsAddr = "127.0.0.1:9108"
	logLevel = "debug"
	subscriptions = []string{"volts:5", "amps"}

	cfg, err := loadConfig([]string{"daq.local", "10007"})
	require.NoError(t, err)

	assert.Equal(t, "daq.local", cfg.Server.Host)
	assert.Equal(t, "10007", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:9108", cfg.Metrics.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []protocol.SubscribeRequest{
		{Name: "volts", Decimation: 5},
		{Name: "amps", Decimation: 1},
	}, cfg.SubscribeRequests())
}

func TestLoadConfig_Invalid(t *testing.T) {
	resetFlags(t)
	configPath = filepath.Join(t.TempDir(), "missing.yaml")

	subscriptions = []string{"volts:zero"}
	_, err := loadConfig(nil)
	assert.Error(t, err)

	subscriptions = nil
	_, err = loadConfig([]string{"daq.local", "70000"})
	assert.Error(t, err)
}

func TestPlainPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newPlainPrinter(&buf)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	sink := p.Sink()

	desc := channels.Descriptor{Name: "volts", SamplePeriod: 0.001, DataType: "float", Scale: 1, DecimationFactor: 1}
	sink(client.AvailableChannel{Channel: desc})
	sink(client.ChannelSubscribed{Name: "volts", ID: 2})

	raw := binary.LittleEndian.AppendUint32(nil, math.Float32bits(1.5))
	raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(2.5))
	sink(client.ChannelData{ID: 2, Raw: raw, Count: 2, Channel: desc})
	sink(client.AcquisitionChanged{Acquiring: true})
	p.summary()
	sink(client.Disconnected{})

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "03:04:05.000 available    volts rate=1000Hz type=float scale=1 offset=0", lines[0])
	assert.Equal(t, "03:04:05.000 subscribed   volts id=2", lines[1])
	assert.Equal(t, "03:04:05.000 acquisition  on", lines[2])
	assert.Equal(t, "03:04:05.000 data         volts samples=2 frames=1 last=2.5", lines[3])
	assert.Contains(t, lines[4], "disconnected connection closed")

	// Stopping acquisition resets the totals
	buf.Reset()
	sink(client.AcquisitionChanged{Acquiring: false})
	p.summary()
	assert.NotContains(t, buf.String(), "data ")
}

func TestRunPlain_ServerClose(t *testing.T) {
	local, remote := net.Pipe()
	c := client.New(local, nil)
	defer c.Close()

	require.NoError(t, remote.Close())

	err := runPlain(context.Background(), c, newPlainPrinter(&bytes.Buffer{}), 0)
	var ce *client.ConnectionError
	assert.ErrorAs(t, err, &ce)
}

func TestRunPlain_Cancel(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := client.New(local, nil)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, runPlain(ctx, c, newPlainPrinter(&bytes.Buffer{}), time.Hour))
}

func TestConfigInitAndShow(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"config", "init", "daq.local", "--config", path, "--subscribe", "volts:4"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Wrote "+path)

	rootCmd.SetArgs([]string{"config", "init", "--config", path})
	assert.Error(t, rootCmd.Execute(), "existing file needs --force")

	out.Reset()
	subscriptions = nil
	rootCmd.SetArgs([]string{"config", "show", "--config", path})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "host: daq.local")
	assert.Contains(t, out.String(), "name: volts")
	assert.Contains(t, out.String(), "decimation: 4")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "ll-client "))
}
