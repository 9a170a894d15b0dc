package cmd

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ryanpkennedy/df-healthbench/internal/rag/repository"
	"github.com/ryanpkennedy/df-healthbench/pkg/db"
	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	summarizeForce   bool
	summarizeClear   bool
	summarizeTimeout time.Duration
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [id]",
	Short: "Summarize a document",
	Long: `Generate a summary of a clinical note. Summaries are cached per document
and reused until the document is edited; --force regenerates regardless, and
--clear drops the cached summary without generating a new one.`,
	Args: cobra.ExactArgs(1),
	Run:  runSummarize,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)

	defaultTimeout := 2 * time.Minute
	summarizeCmd.Flags().BoolVar(&summarizeForce, "force", false, "Regenerate even when a fresh cached summary exists")
	summarizeCmd.Flags().BoolVar(&summarizeClear, "clear", false, "Drop the cached summary instead of summarizing")
	summarizeCmd.Flags().DurationVar(&summarizeTimeout, "timeout", defaultTimeout, "Timeout for the entire operation")
}

func runSummarize(_ *cobra.Command, args []string) {
	logger := util.NewLogger(zerolog.InfoLevel)

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		logger.Fatal().Err(err).Str("document_id", args[0]).Msg("Invalid document id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), summarizeTimeout)
	defer cancel()

	database, err := db.Connect()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	if summarizeClear {
		cleared, err := repository.NewSummaryRepository(database).Delete(ctx, id)
		if err != nil {
			exitWithError(logger, err, "Failed to clear cached summary")
		}
		logger.Info().Int64("document_id", id).Bool("cleared", cleared).Msg("Cached summary cleared")
		return
	}

	service, err := newSummaryService(database)
	if err != nil {
		exitWithError(logger, err, "Failed to initialize pipeline")
	}

	result, err := service.SummarizeDocument(ctx, id, summarizeForce)
	if err != nil {
		exitWithError(logger, err, "Failed to summarize document")
	}

	jsonOutput, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to marshal JSON")
	}
	logger.Info().RawJSON("summary", jsonOutput).Bool("from_cache", result.FromCache).
		Msg("Document summarized")
}
