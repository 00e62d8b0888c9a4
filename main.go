package main

import (
	"github.com/rs/zerolog/log"

	"github.com/vmgatelabs/vmgate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}
