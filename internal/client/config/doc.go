// Package config loads the CLI client configuration.
//
// Values are applied in order: defaults, then an optional JSON file named
// by -c / -config, then command-line flags.
//
// JSON keys:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "request_timeout": "10s"
//	}
//
// Flags:
//
//	-a string   server gRPC address
//	-t int      per-request timeout, seconds
package config
