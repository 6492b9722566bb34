package cmd

import (
	"log"

	"github.com/root39293/platon-discord-bot/platon"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flags]",
	Short: "Starts the Platon bot and (optionally) the status API",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		bot, err := platon.New(cfg)
		if err != nil {
			log.Fatalf("error creating platon: %s", err.Error())
		}

		if err = bot.Run(ctx); err != nil {
			log.Fatalf("error running platon: %s", err.Error())
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
