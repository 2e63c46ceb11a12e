// Package config loads runtime configuration for the notesync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file passed to LoadConfig (the --config flag).
//  3. Command-line flags, applied by the CLI on top of the result.
//
// Durations in the file accept strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "device": "laptop",
//	  "reconnect_max_delay": "30s"
//	}
package config
