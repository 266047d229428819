package main

import (
	"context"
	"log"
	"os"

	"github.com/mvoronin/promptstash/internal/buildinfo"
	"github.com/mvoronin/promptstash/internal/server"
	"github.com/mvoronin/promptstash/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
