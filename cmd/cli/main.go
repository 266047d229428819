package main

import (
	"context"
	"log"
	"os"

	"github.com/mvoronin/promptstash/internal/admincli"
	"github.com/mvoronin/promptstash/internal/buildinfo"
	"github.com/mvoronin/promptstash/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := admincli.NewApp(cfg, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}
}
