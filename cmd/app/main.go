package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"MacoPull/internal/di"
	"MacoPull/pkg/config"
	"MacoPull/pkg/server"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	modeFlag := flag.String("mode", string(server.ModeOnce), "run mode: once, serve or schedule")
	flag.Parse()

	mode, err := server.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	os.Exit(run(app, cleanup, mode))
}

func run(app *server.App, cleanup func(), mode server.Mode) int {
	defer cleanup()
	ctx := context.Background()

	switch mode {
	case server.ModeServe:
		if err := app.Serve(ctx); err != nil {
			log.Printf("serve error: %v", err)
			return 1
		}
	case server.ModeSchedule:
		if err := app.Schedule(ctx); err != nil {
			log.Printf("schedule error: %v", err)
			return 1
		}
	default:
		res, err := app.RunOnce(ctx)
		if err != nil {
			log.Printf("run error: %v", err)
			return 1
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Printf("encode result: %v", err)
			return 1
		}
		if res.Failed() {
			return 1
		}
	}
	return 0
}
