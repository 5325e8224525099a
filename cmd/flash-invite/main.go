package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/visorry/flash-invite-sub001/internal/app"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	server, errNew := app.New(*configPath)
	if errNew != nil {
		log.WithError(errNew).Error("startup failed")
		os.Exit(1)
	}
	if errRun := server.Run(context.Background()); errRun != nil {
		log.WithError(errRun).Error("server exited")
		os.Exit(1)
	}
}
