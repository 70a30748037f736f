// Command optsctl inspects and edits a layered configuration.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/goliatone/go-optstore/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
