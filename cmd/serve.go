package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"f1hub"
	"f1hub/internal/config"
)

func init() {
	command := &cobra.Command{
		Use:   "serve",
		Short: "serve F1-Hub streaming backend",
		Long:  `serve F1-Hub streaming backend`,
		Run:   f1hub.Service.ServeCommand,
	}

	configs := []config.Config{
		f1hub.Service.ServerConfig,
	}

	cobra.OnInitialize(func() {
		for _, cfg := range configs {
			cfg.Set()
		}
		f1hub.Service.Preflight()
	})

	onConfigLoad = append(onConfigLoad, func() {
		for _, cfg := range configs {
			cfg.Set()
		}
	})

	for _, cfg := range configs {
		if err := cfg.Init(command); err != nil {
			log.Panic().Err(err).Msg("unable to run serve command")
		}
	}

	rootCmd.AddCommand(command)
}
