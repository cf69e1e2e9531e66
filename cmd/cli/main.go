package main

import (
	"context"
	"log"
	"os"

	"github.com/serenityspace/healthkeeper/internal/buildinfo"
	"github.com/serenityspace/healthkeeper/internal/client/cli"
	"github.com/serenityspace/healthkeeper/internal/client/config"
	"github.com/serenityspace/healthkeeper/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewDefault()

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
