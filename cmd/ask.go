package cmd

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ryanpkennedy/df-healthbench/internal/rag/interfaces"
	"github.com/ryanpkennedy/df-healthbench/pkg/db"
	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	askTopK      int
	askThreshold float64
	askModel     string
	askTimeout   time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the embedded documents",
	Long: `Answer a question using retrieval-augmented generation: the question is
embedded, the most similar chunks are retrieved from the vector index, and
the answer is generated from that context with source citations.

Examples:
  # Ask with defaults
  healthbench ask "What medication was prescribed for hypertension?"

  # Restrict to highly similar context
  healthbench ask "What was the assessment?" --top-k 3 --threshold 0.75`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	defaultTimeout := 2 * time.Minute
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "Number of chunks to retrieve (default from RAG_TOP_K)")
	askCmd.Flags().Float64Var(&askThreshold, "threshold", 0, "Minimum similarity score in [0,1]; 0 disables the filter")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "Generation model (default from OPENAI_DEFAULT_MODEL)")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", defaultTimeout, "Timeout for the entire operation")
}

func runAsk(_ *cobra.Command, args []string) {
	logger := util.NewLogger(zerolog.InfoLevel)
	question := strings.Join(args, " ")

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
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

	opts := &interfaces.AnswerOptions{
		TopK:  askTopK,
		Model: askModel,
	}
	if askThreshold > 0 {
		opts.SimilarityThreshold = &askThreshold
	}

	answer, err := service.AnswerQuestion(ctx, question, opts)
	if err != nil {
		exitWithError(logger, err, "Failed to answer question")
	}

	jsonOutput, err := json.MarshalIndent(answer, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to marshal JSON")
	}
	logger.Info().RawJSON("answer", jsonOutput).Msg("Question answered")
}
