// Package config provides configuration parsing for photon servers.
//
// The configuration is stored in photon.json. Fields omitted from the file
// keep their defaults; command-line flags override both.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "address": ":6666",
//	    "httpAddress": ":6667",
//	    "maxConnections": 1024,
//	    "idleTimeout": "5m",
//	    "heartbeatInterval": "30s"
//	  },
//	  "protocol": {
//	    "maxChunkSize": 16384,
//	    "versions": [1],
//	    "channels": [1, 2],
//	    "requireHandshake": true
//	  },
//	  "log": {
//	    "level": "debug",
//	    "format": "json"
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "photon"
//	  },
//	  "blob": {
//	    "enabled": true,
//	    "backend": "s3",
//	    "bucket": "photon-blobs",
//	    "region": "us-east-1",
//	    "endpoint": "http://localhost:9000",
//	    "usePathStyle": true
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	srv := server.New(app, cfg.ServerConfig())
package config
