package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/spf13/viper"

	"github.com/Protocol-Lattice/specgen/src/app"
	"github.com/Protocol-Lattice/specgen/src/config"
	"github.com/Protocol-Lattice/specgen/src/mcpserver"
)

const version = "1.0.0"

func main() {
	cfgFile := flag.String("config", "", "config file (default is $HOME/.config/specgen/config.yaml)")
	flag.Parse()

	v := viper.New()
	if err := config.Init(v, *cfgFile); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	ctx := context.Background()
	// stdout carries the MCP stream, so logs go to stderr.
	a, err := app.New(ctx, cfg, app.Options{LogFallback: os.Stderr})
	if err != nil {
		log.Fatalf("Startup error: %v", err)
	}
	defer a.Close()
	a.ServeMetrics(ctx)

	if err := mcpserver.New(a.Host, version).ServeStdio(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
