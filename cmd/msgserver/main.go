package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/gophkerb/internal/msgserver"
	"github.com/dmitrijs2005/gophkerb/internal/msgserver/config"
)

func main() {

	cfg := config.LoadConfig()
	app, err := msgserver.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}

}
