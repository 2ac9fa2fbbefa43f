package main

import (
	"context"
	"log"

	"github.com/carmarket/marketauth/internal/client/cli"
	"github.com/carmarket/marketauth/internal/client/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(context.Background())
}
