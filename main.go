package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gregLibert/nbt-brand-protection/internal/command"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.New().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
