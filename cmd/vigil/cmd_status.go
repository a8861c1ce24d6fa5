package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the longitudinal state and crisis history",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	eng, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	now := time.Now()
	st, err := eng.store.Load(now, cfg.Storage.StalenessWindow)
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Println("No recent history on record. The next check-in starts fresh.")
	} else {
		fmt.Printf("Check-ins on record:  %d\n", st.CheckInCount)
		fmt.Printf("Last check-in:        %s\n", st.LastUpdated.Format("2006-01-02 15:04"))
		fmt.Printf("Last risk level:      %s\n", st.LastRiskTier.Label())
		fmt.Printf("Trajectory:           %s\n", st.Trajectory)
		fmt.Printf("Primary driver:       %s\n", st.Driver)
		if days := st.DaysSinceLastCrisis(now); days >= 0 {
			fmt.Printf("Days since crisis:    %d\n", days)
		}
		if st.Narrative != "" {
			fmt.Printf("\nHistory:\n  %s\n", st.Narrative)
		}
	}

	n, err := eng.store.CrisisCountSince(now, cfg.Crisis.FrequencyWindow)
	if err != nil {
		return err
	}
	fmt.Printf("\nCrisis episodes in the last %d days: %d\n",
		int(cfg.Crisis.FrequencyWindow.Hours()/24), n)
	return nil
}
