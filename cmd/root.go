package cmd

import (
	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "healthbench",
	Short: "A CLI tool for question answering over medical documents",
	Long: `healthbench manages a corpus of clinical notes: store documents,
chunk and embed them into a vector index, and answer questions grounded
in the retrieved context.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger := util.NewLogger(zerolog.ErrorLevel)
		logger.Fatal().Err(err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	logger := util.NewLogger(zerolog.ErrorLevel)
	if err := godotenv.Load(); err != nil {
		// Not an error: production deployments set the environment directly.
		logger.Debug().Err(err).Msg("No .env file found")
	}
}
