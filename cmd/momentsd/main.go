package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/moments/internal/app"
	"github.com/dmitrijs2005/moments/internal/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadDaemon(ctx, os.Args[1:], nil)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	d, err := app.NewDaemon(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := d.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
