package main

import (
	"context"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"lini/cli"
	"lini/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCmd(nil).ExecuteContext(ctx); err != nil {
		// Service rejections were already shown as alerts.
		if !domain.IsRemote(err) {
			log.Error(err)
		}
		stop()
		os.Exit(1)
	}
}
