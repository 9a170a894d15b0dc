package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ryanpkennedy/df-healthbench/internal/rag/models"
	"github.com/ryanpkennedy/df-healthbench/internal/rag/repository"
	"github.com/ryanpkennedy/df-healthbench/internal/rag/transformers"
	"github.com/ryanpkennedy/df-healthbench/pkg/db"
	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	documentTitle       string
	documentFile        string
	documentsSkip       int
	documentsLimit      int
	documentsShowChunks bool
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage documents",
	Long:  `Manage clinical documents in the database - list, get, create, import and delete.`,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all documents",
	Run: func(_ *cobra.Command, _ []string) {
		logger := util.NewLogger(zerolog.InfoLevel)

		database, err := db.NewConnection()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()

		repo := repository.NewDocumentRepository(database)
		documents, err := repo.List(context.Background(), documentsSkip, documentsLimit)
		if err != nil {
			exitWithError(logger, err, "Failed to list documents")
		}

		if len(documents) == 0 {
			logger.Info().Msg("No documents found")
			return
		}

		jsonOutput, err := json.MarshalIndent(documents, "", "  ")
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to marshal JSON")
		}
		logger.Info().RawJSON("documents", jsonOutput).Msg("Documents retrieved successfully")
	},
}

var documentsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get a document by ID",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		logger := util.NewLogger(zerolog.InfoLevel)

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			logger.Fatal().Err(err).Str("document_id", args[0]).Msg("Invalid document id")
		}

		database, err := db.NewConnection()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer func(database *db.DB) {
			if err := database.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close database connection")
			}
		}(database)

		repo := repository.NewDocumentRepository(database)
		document, err := repo.GetByID(context.Background(), id)
		if err != nil {
			exitWithError(logger, err, "Failed to get document")
		}
		if document == nil {
			logger.Error().Int64("document_id", id).Str("category", categoryNotFound).Msg("Document not found")
			os.Exit(1)
		}

		if documentsShowChunks {
			embeddings, err := repository.NewEmbeddingRepository(database).GetByDocument(context.Background(), id)
			if err != nil {
				exitWithError(logger, err, "Failed to get document chunks")
			}

			payload := struct {
				Document *models.Document           `json:"document"`
				Chunks   []models.DocumentEmbedding `json:"chunks"`
			}{document, embeddings}

			jsonOutput, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				logger.Fatal().Err(err).Msg("Failed to marshal JSON")
			}
			logger.Info().RawJSON("document", jsonOutput).Int64("document_id", id).
				Int("chunk_count", len(embeddings)).Msg("Document retrieved successfully")
			return
		}

		jsonOutput, err := json.MarshalIndent(document, "", "  ")
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to marshal JSON")
		}
		logger.Info().RawJSON("document", jsonOutput).Int64("document_id", id).Msg("Document retrieved successfully")
	},
}

var documentsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a document from a text file",
	Run: func(_ *cobra.Command, _ []string) {
		logger := util.NewLogger(zerolog.InfoLevel)

		content, err := os.ReadFile(documentFile) // #nosec G304 -- path comes from the operator's flag
		if err != nil {
			logger.Fatal().Err(err).Str("file", documentFile).Msg("Failed to read input file")
		}

		title := documentTitle
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(documentFile), filepath.Ext(documentFile))
		}

		database, err := db.NewConnection()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()

		repo := repository.NewDocumentRepository(database)
		document, err := repo.Create(context.Background(), title, string(content))
		if err != nil {
			exitWithError(logger, err, "Failed to create document")
		}

		logger.Info().Int64("document_id", document.ID).Str("title", document.Title).
			Msg("Document created successfully")
	},
}

var documentsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a document from an HTML export",
	Long: `Import a clinical note exported as HTML. The markup is converted to
markdown before storage; plain text files are stored as-is.`,
	Run: func(_ *cobra.Command, _ []string) {
		logger := util.NewLogger(zerolog.InfoLevel)

		raw, err := os.ReadFile(documentFile) // #nosec G304 -- path comes from the operator's flag
		if err != nil {
			logger.Fatal().Err(err).Str("file", documentFile).Msg("Failed to read input file")
		}

		fallbackTitle := documentTitle
		if fallbackTitle == "" {
			fallbackTitle = strings.TrimSuffix(filepath.Base(documentFile), filepath.Ext(documentFile))
		}

		title := fallbackTitle
		content := string(raw)

		transformer := transformers.NewHTMLTransformer()
		if transformer.CanTransform(content) {
			result, err := transformer.Transform(content, fallbackTitle)
			if err != nil {
				exitWithError(logger, err, "Failed to transform HTML")
			}
			title = result.Title
			content = result.Content
			if documentTitle != "" {
				title = documentTitle
			}
		}

		database, err := db.NewConnection()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()

		repo := repository.NewDocumentRepository(database)
		document, err := repo.Create(context.Background(), title, content)
		if err != nil {
			exitWithError(logger, err, "Failed to create document")
		}

		logger.Info().Int64("document_id", document.ID).Str("title", document.Title).
			Msg("Document imported successfully")
	},
}

var documentsUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Replace a document's title and content",
	Long: `Replace a document's content from a file. The update advances the
document's modification time, which invalidates its cached summary and
marks existing embeddings for re-embedding with --force.`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		logger := util.NewLogger(zerolog.InfoLevel)

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			logger.Fatal().Err(err).Str("document_id", args[0]).Msg("Invalid document id")
		}

		content, err := os.ReadFile(documentFile) // #nosec G304 -- path comes from the operator's flag
		if err != nil {
			logger.Fatal().Err(err).Str("file", documentFile).Msg("Failed to read input file")
		}

		database, err := db.NewConnection()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()

		repo := repository.NewDocumentRepository(database)
		ctx := context.Background()

		title := documentTitle
		if title == "" {
			existing, err := repo.GetByID(ctx, id)
			if err != nil {
				exitWithError(logger, err, "Failed to get document")
			}
			if existing == nil {
				logger.Error().Int64("document_id", id).Str("category", categoryNotFound).Msg("Document not found")
				os.Exit(1)
			}
			title = existing.Title
		}

		document, err := repo.Update(ctx, id, title, string(content))
		if err != nil {
			exitWithError(logger, err, "Failed to update document")
		}
		if document == nil {
			logger.Error().Int64("document_id", id).Str("category", categoryNotFound).Msg("Document not found")
			os.Exit(1)
		}

		logger.Info().Int64("document_id", document.ID).Str("title", document.Title).
			Msg("Document updated successfully")
	},
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a document and its derived data",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		logger := util.NewLogger(zerolog.InfoLevel)

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			logger.Fatal().Err(err).Str("document_id", args[0]).Msg("Invalid document id")
		}

		database, err := db.NewConnection()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()

		repo := repository.NewDocumentRepository(database)
		deleted, err := repo.Delete(context.Background(), id)
		if err != nil {
			exitWithError(logger, err, "Failed to delete document")
		}
		if !deleted {
			logger.Error().Int64("document_id", id).Str("category", categoryNotFound).Msg("Document not found")
			os.Exit(1)
		}

		logger.Info().Int64("document_id", id).Msg("Document deleted successfully")
	},
}

func init() {
	rootCmd.AddCommand(documentsCmd)
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsGetCmd)
	documentsCmd.AddCommand(documentsCreateCmd)
	documentsCmd.AddCommand(documentsImportCmd)
	documentsCmd.AddCommand(documentsUpdateCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)

	const defaultLimit = 100
	documentsListCmd.Flags().IntVar(&documentsSkip, "skip", 0, "Number of documents to skip")
	documentsListCmd.Flags().IntVar(&documentsLimit, "limit", defaultLimit, "Maximum number of documents to return")

	documentsGetCmd.Flags().BoolVar(&documentsShowChunks, "chunks", false, "Include the document's embedded chunks")

	documentsCreateCmd.Flags().StringVarP(&documentFile, "file", "f", "", "Path to the text file to store (required)")
	documentsCreateCmd.Flags().StringVarP(&documentTitle, "title", "t", "", "Document title (defaults to the file name)")
	if err := documentsCreateCmd.MarkFlagRequired("file"); err != nil {
		return
	}

	documentsImportCmd.Flags().StringVarP(&documentFile, "file", "f", "", "Path to the HTML file to import (required)")
	documentsImportCmd.Flags().StringVarP(&documentTitle, "title", "t", "", "Document title (defaults to the page title)")
	if err := documentsImportCmd.MarkFlagRequired("file"); err != nil {
		return
	}

	documentsUpdateCmd.Flags().StringVarP(&documentFile, "file", "f", "", "Path to the replacement content file (required)")
	documentsUpdateCmd.Flags().StringVarP(&documentTitle, "title", "t", "", "New title (defaults to the current title)")
	if err := documentsUpdateCmd.MarkFlagRequired("file"); err != nil {
		return
	}
}
