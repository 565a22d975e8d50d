package config

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "windows" && runtime.GOOS != "darwin" {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	}

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "ll-client") {
		t.Errorf("GetConfigDir() = %v, should contain 'll-client'", configDir)
	}

	if runtime.GOOS == "linux" && configDir != filepath.Join("/tmp/xdg", "ll-client") {
		t.Errorf("GetConfigDir() = %v, want XDG_CONFIG_HOME based path", configDir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
	if cfg.Server.Port != "10006" {
		t.Errorf("Server.Port = %q, want 10006", cfg.Server.Port)
	}
	if cfg.Server.DialTimeout != 5*time.Second {
		t.Errorf("Server.DialTimeout = %v, want 5s", cfg.Server.DialTimeout)
	}
	if cfg.Client.MaxFrameSize != 1<<20 {
		t.Errorf("Client.MaxFrameSize = %d, want 1 MiB", cfg.Client.MaxFrameSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "10006" {
		t.Errorf("Server.Port = %q, want default", cfg.Server.Port)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `version: 1
server:
  host: daq.local
  dial_timeout: 2s
client:
  sample_byte_order: big
subscriptions:
  - name: volts
    decimation: 10
  - name: amps
metrics:
  addr: 127.0.0.1:9108
log_level: debug
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "daq.local" {
		t.Errorf("Server.Host = %q", cfg.Server.Host)
	}
	if cfg.Server.Port != "10006" {
		t.Errorf("Server.Port = %q, want default", cfg.Server.Port)
	}
	if cfg.Server.DialTimeout != 2*time.Second {
		t.Errorf("Server.DialTimeout = %v", cfg.Server.DialTimeout)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9108" {
		t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
	}

	reqs := cfg.SubscribeRequests()
	if len(reqs) != 2 || reqs[0].Decimation != 10 || reqs[1].Decimation != 1 {
		t.Errorf("SubscribeRequests() = %+v", reqs)
	}

	cc, err := cfg.ClientConfig()
	if err != nil {
		t.Fatalf("ClientConfig() error = %v", err)
	}
	if cc.SampleByteOrder != binary.BigEndian {
		t.Errorf("SampleByteOrder = %v, want big endian", cc.SampleByteOrder)
	}
	if cc.Addr() != "daq.local:10006" {
		t.Errorf("Addr() = %q", cc.Addr())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "server: [unclosed"},
		{"future version", "version: 2\n"},
		{"bad port", "server:\n  port: \"99999\"\n"},
		{"tiny buffer", "client:\n  max_frame_size: 4\n"},
		{"bad byte order", "client:\n  sample_byte_order: middle\n"},
		{"bad log level", "log_level: loud\n"},
		{"duplicate subscription", "subscriptions:\n  - name: a\n  - name: a\n"},
		{"empty subscription name", "subscriptions:\n  - decimation: 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("Load() expected error for %s", tt.name)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Server.Host = "10.0.0.5"
	cfg.AddSubscription(Subscription{Name: "volts", Decimation: 0})
	cfg.AddSubscription(Subscription{Name: "volts", Decimation: 3})

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# ll-client configuration file") {
		t.Error("saved file should start with the header comment")
	}
	if !strings.Contains(string(data), "dial_timeout: 5s") {
		t.Errorf("dial_timeout should be written as a duration string:\n%s", data)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should not remain after save")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.Host != "10.0.0.5" {
		t.Errorf("Server.Host = %q", loaded.Server.Host)
	}
	if len(loaded.Subscriptions) != 1 || loaded.Subscriptions[0].Decimation != 3 {
		t.Errorf("Subscriptions = %+v", loaded.Subscriptions)
	}
}

func TestParseSubscription(t *testing.T) {
	tests := []struct {
		in      string
		want    Subscription
		wantErr bool
	}{
		{"volts", Subscription{Name: "volts", Decimation: 1}, false},
		{"volts:10", Subscription{Name: "volts", Decimation: 10}, false},
		{" amps : 2 ", Subscription{Name: "amps", Decimation: 2}, false},
		{":3", Subscription{}, true},
		{"volts:0", Subscription{}, true},
		{"volts:x", Subscription{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSubscription(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSubscription(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSubscription(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
