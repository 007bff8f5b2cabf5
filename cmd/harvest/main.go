// cmd/harvest/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/law-makers/harvest/internal/cli"
)

func main() {
	// The first interrupt cancels the run so partial results can be written;
	// after that the default handler is restored and a second one kills it.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
