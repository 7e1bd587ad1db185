package main

import (
	"os"

	"github.com/strongdm/go-rollnotify/internal/cliconfig"
)

func main() {
	log := cliconfig.Logger()
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		log.Error().Err(err).Msg("rollnotify")
		os.Exit(1)
	}
}
