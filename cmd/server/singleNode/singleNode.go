package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Blackdeer1524/GraphCatalog/src/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(ctx, ".env"); err != nil {
		log.Fatal(err)
	}
}
