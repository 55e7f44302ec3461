// Command stagehandd runs the stagehand daemon in the foreground.
package main

import (
	"context"
	"flag"
	"log"

	"stagehand/internal/config"
	"stagehand/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	dev := flag.Bool("dev", false, "Enable development logging (adds source locations)")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel:    *logLevel,
		Development: *dev,
	}); err != nil {
		log.Fatalf("stagehandd: %v", err)
	}
}
