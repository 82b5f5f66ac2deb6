package main

import (
	"github.com/rs/zerolog/log"

	"f1hub/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Panic().Err(err).Msg("failed to execute command")
	}
}
