package main

import (
	"flag"
	"log"

	"github.com/AnishMulay/fscheck/internal/config"
	"github.com/AnishMulay/fscheck/servers/checkd"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		nodeID     = flag.String("node-id", "", "Node ID (overrides config)")
		listen     = flag.String("listen", "", "Listen address (overrides config)")
		logDir     = flag.String("log-dir", "", "Log directory (overrides config)")
		logLevel   = flag.String("log-level", "", "Log level (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *nodeID != "" {
		cfg.NodeID = *nodeID
	}
	if *listen != "" {
		cfg.Server.ListenAddr = *listen
	}
	if *logDir != "" {
		cfg.Log.Dir = *logDir
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	server, err := checkd.Build(checkd.Options{Config: cfg})
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}
	if err := server.Run(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
