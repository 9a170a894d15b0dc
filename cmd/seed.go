package cmd

import (
	"context"

	"github.com/ryanpkennedy/df-healthbench/internal/rag/repository"
	"github.com/ryanpkennedy/df-healthbench/pkg/db"
	"github.com/ryanpkennedy/df-healthbench/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type seedDocument struct {
	title   string
	content string
}

var seedDocuments = []seedDocument{
	{
		title: "Progress Note - Hypertension Follow-up",
		content: `S: Patient returns for follow-up of hypertension. Reports good adherence to lisinopril 10mg daily. Denies headache, chest pain, or visual changes. Home blood pressure readings averaging 132/84.

O: BP 130/82, HR 72, regular. Weight stable at 184 lbs. Cardiovascular exam unremarkable, no edema. Labs from last visit: creatinine 0.9, potassium 4.2.

A: Hypertension, improving on current regimen. Blood pressure approaching goal of <130/80.

P: Continue lisinopril 10mg daily. Encourage continued sodium restriction and daily walking. Recheck basic metabolic panel in 6 months. Return to clinic in 3 months or sooner if home readings exceed 150/95.`,
	},
	{
		title: "Urgent Care Visit - Viral Upper Respiratory Infection",
		content: `S: 34-year-old presents with 3 days of sore throat, rhinorrhea, and dry cough. Low-grade fever to 100.4 at home. No shortness of breath. Denies sick contacts with confirmed strep.

O: Temp 99.8, SpO2 99% on room air. Oropharynx mildly erythematous without exudate. No cervical lymphadenopathy. Lungs clear bilaterally. Rapid strep negative.

A: Viral upper respiratory infection.

P: Supportive care: rest, fluids, acetaminophen as needed for fever. Return if symptoms worsen, fever exceeds 102, or no improvement in 7 days. Work note provided for 2 days.`,
	},
	{
		title: "Discharge Summary - Community Acquired Pneumonia",
		content: `Admission diagnosis: Community acquired pneumonia, right lower lobe.

Hospital course: 67-year-old admitted with productive cough, fever to 102.5, and hypoxia to 88% on room air. Chest x-ray showed right lower lobe consolidation. Started on ceftriaxone and azithromycin. Blood cultures negative at 48 hours. Oxygen weaned to room air by hospital day 3. Transitioned to oral amoxicillin-clavulanate and azithromycin to complete a 7-day total course.

Discharge medications: Amoxicillin-clavulanate 875/125mg twice daily for 4 days, azithromycin 250mg daily for 2 days, resume home lisinopril and atorvastatin.

Follow-up: Primary care in 1 week. Repeat chest x-ray in 6 weeks to confirm resolution. Return precautions reviewed: worsening shortness of breath, fever recurrence, chest pain.`,
	},
	{
		title: "Clinic Note - Type 2 Diabetes Management",
		content: `S: Patient with type 2 diabetes here for quarterly visit. Checking glucose most mornings, fasting values 110-140. Taking metformin 1000mg twice daily without GI upset. Reports occasional tingling in both feet.

O: BP 128/78. Weight down 4 lbs since last visit. A1c today 7.1%, down from 7.8%. Monofilament exam shows decreased sensation at the great toes bilaterally. Feet without ulceration.

A: Type 2 diabetes with improving control. Early peripheral neuropathy.

P: Continue metformin 1000mg twice daily. Reinforced foot care and daily self-examination. Referral to podiatry. Annual ophthalmology exam reminder given. Repeat A1c in 3 months; consider adding a second agent if above 7.5%.`,
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample clinical notes",
	Long:  `Load a small set of sample clinical notes for development and demos.`,
	Run: func(_ *cobra.Command, _ []string) {
		logger := util.NewLogger(zerolog.InfoLevel)

		database, err := db.NewConnection()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()

		repo := repository.NewDocumentRepository(database)
		ctx := context.Background()

		for _, seed := range seedDocuments {
			document, err := repo.Create(ctx, seed.title, seed.content)
			if err != nil {
				exitWithError(logger, err, "Failed to create seed document")
			}
			logger.Info().Int64("document_id", document.ID).Str("title", document.Title).
				Msg("Seed document created")
		}

		logger.Info().Int("documents", len(seedDocuments)).Msg("Seeding complete")
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
