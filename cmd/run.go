package cmd

import (
	"log"

	"github.com/chaperonebot/chaperone/chaperone"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flags]",
	Short: "Starts the Chaperone bot and status API",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		bot, err := chaperone.New(cfg)
		if err != nil {
			log.Fatalf("error creating chaperone: %s", err.Error())
		}

		if err = bot.Run(ctx); err != nil {
			log.Fatalf("error running chaperone: %s", err.Error())
		}
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(runCmd)
}
