package main

import (
	"context"
	"flag"
	"log"

	"github.com/sentira-ai/sentira/internal/app"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "sentira.yaml", "Path to Sentira config file")
	flag.Parse()

	if err := app.Run(context.Background(), app.Options{
		ConfigPath: *configPath,
		Addr:       *addr,
	}); err != nil {
		log.Fatalf("sentira: %v", err)
	}
}
