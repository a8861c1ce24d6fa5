package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a prior clinical record into the history",
	Long: `Summarizes a prior clinical record (discharge note, treatment
summary) and seeds the longitudinal narrative with it. Runs once per
document; the full text never persists, only the summary.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	doc, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	eng, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	summary, outcome, err := eng.orch.IngestDocument(ctx, string(doc))
	if err != nil {
		return err
	}
	source := "deterministic excerpt"
	if outcome.UsedModel {
		source = "model summary"
	}
	fmt.Printf("Ingested (%s):\n  %s\n", source, summary)
	return nil
}
