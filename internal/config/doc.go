// Package config provides the YAML configuration file of ll-client.
//
// The file holds the server to connect to, stream reader tuning, channels
// to subscribe at startup, the side server address and logging options.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/ll-client/config.yaml or $HOME/.config/ll-client/config.yaml
//   - macOS: $HOME/.config/ll-client/config.yaml
//   - Windows: %LOCALAPPDATA%\ll-client\config.yaml
//
// # Example
//
//	version: 1
//	server:
//	  host: daq.local
//	  port: "10006"
//	  dial_timeout: 5s
//	client:
//	  max_frame_size: 1048576
//	  sample_byte_order: little
//	subscriptions:
//	  - name: volts
//	    decimation: 10
//	metrics:
//	  addr: 127.0.0.1:9108
//	log_level: info
//
// # Usage
//
//	cfg, err := config.Load("")   // default location, defaults if missing
//	if err != nil {
//	    return err
//	}
//	clientCfg, err := cfg.ClientConfig()
//
// Saving is atomic (write to a temporary file, then rename) and guarded by a
// package mutex.
package config
