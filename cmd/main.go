package main

import (
	"flag"
	"log"
	"os"

	"feed_spider/internal/app"
	"feed_spider/internal/config"
	"feed_spider/internal/logger"
)

func main() {
	defaultPath := os.Getenv("FEED_SPIDER_CONFIG")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	configPath := flag.String("config", defaultPath, "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	loggerClient := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	defer func() { _ = loggerClient.Sync() }()

	spider, err := app.NewSpiderApp(cfg, loggerClient)
	if err != nil {
		loggerClient.Error("feed spider failed to start", logger.Error(err))
		os.Exit(1)
	}

	if err := spider.Run(); err != nil {
		loggerClient.Error("feed spider stopped with error", logger.Error(err))
		os.Exit(1)
	}
}
