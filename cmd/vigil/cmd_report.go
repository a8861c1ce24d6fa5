package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vigil/internal/prompt"
	"vigil/internal/risk"
	"vigil/internal/session"
)

var reportRecipient string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate an SBAR handoff report from the current history",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportRecipient, "recipient", "r", "clinician",
		"report audience: clinician, caregiver, or self")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	eng, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	tier := risk.TierLow
	driver := risk.DriverCombined
	history := ""
	if st, err := eng.store.Load(time.Now(), cfg.Storage.StalenessWindow); err != nil {
		return err
	} else if st != nil {
		tier = st.LastRiskTier
		driver = st.Driver
		history = st.Narrative
	}

	text, outcome := eng.orch.GenerateReport(ctx, session.ReportArgs{
		History:   history,
		Tier:      tier,
		Driver:    driver,
		Recipient: prompt.Recipient(reportRecipient),
	})
	if !outcome.UsedModel {
		fmt.Println("(structured template report; model unavailable)")
	}
	fmt.Println(text)
	return nil
}
