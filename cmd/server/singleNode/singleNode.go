package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/Blackdeer1524/pgcatalog/src/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Serve(ctx, ".env"); err != nil {
		log.Fatal(err)
	}
}
