package cmd

import (
	"context"
	"encoding/json"

	"github.com/ryanpkennedy/df-healthbench/pkg/db"
	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show retrieval corpus statistics",
	Long:  `Show document counts, embedding counts and the active pipeline configuration.`,
	Run: func(_ *cobra.Command, _ []string) {
		logger := util.NewLogger(zerolog.InfoLevel)

		database, err := db.Connect()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()

		service, err := newRAGService(database)
		if err != nil {
			exitWithError(logger, err, "Failed to initialize pipeline")
		}

		stats, err := service.Stats(context.Background())
		if err != nil {
			exitWithError(logger, err, "Failed to collect stats")
		}

		jsonOutput, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to marshal JSON")
		}
		logger.Info().RawJSON("stats", jsonOutput).Msg("Corpus statistics")
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
