package cmd

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ryanpkennedy/df-healthbench/pkg/db"
	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	embedForce   bool
	embedAll     bool
	embedTimeout time.Duration
)

var embedCmd = &cobra.Command{
	Use:   "embed [id]",
	Short: "Chunk and embed documents into the vector index",
	Long: `Chunk document content and generate vector embeddings for retrieval.

Examples:
  # Embed one document
  healthbench embed 42

  # Re-embed a document after editing it
  healthbench embed 42 --force

  # Embed every document that has no vectors yet
  healthbench embed --all`,
	Args: cobra.MaximumNArgs(1),
	Run:  runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)

	defaultTimeout := 10 * time.Minute
	embedCmd.Flags().BoolVar(&embedForce, "force", false, "Delete existing vectors and re-embed")
	embedCmd.Flags().BoolVar(&embedAll, "all", false, "Embed every stored document")
	embedCmd.Flags().DurationVar(&embedTimeout, "timeout", defaultTimeout, "Timeout for the entire operation")
}

func runEmbed(cmd *cobra.Command, args []string) {
	logger := util.NewLogger(zerolog.InfoLevel)

	if !embedAll && len(args) == 0 {
		logger.Error().Str("category", categoryInvalidInput).Msg("Provide a document id or --all")
		_ = cmd.Usage()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), embedTimeout)
	defer cancel()

	database, err := db.Connect()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	service, err := newRAGService(database)
	if err != nil {
		exitWithError(logger, err, "Failed to initialize pipeline")
	}

	if embedAll {
		result, err := service.EmbedAllDocuments(ctx, embedForce)
		if err != nil {
			exitWithError(logger, err, "Batch embedding failed")
		}

		jsonOutput, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to marshal JSON")
		}
		logger.Info().RawJSON("result", jsonOutput).Msg("Batch embedding complete")
		return
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		logger.Fatal().Err(err).Str("document_id", args[0]).Msg("Invalid document id")
	}

	result, err := service.EmbedDocument(ctx, id, embedForce)
	if err != nil {
		exitWithError(logger, err, "Embedding failed")
	}

	jsonOutput, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to marshal JSON")
	}
	logger.Info().RawJSON("result", jsonOutput).Msg("Document embedded")
}
