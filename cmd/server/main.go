package main

import (
	"context"
	"log"

	"github.com/xxiimcha/lk-web/internal/server"
	"github.com/xxiimcha/lk-web/internal/server/config"
)

func main() {
	cfg := config.MustLoad()

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}
}
