package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vigil/internal/crisis"
	"vigil/internal/prompt"
	"vigil/internal/questionnaire"
	"vigil/internal/session"
)

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Run an interactive daily check-in",
	Long: `Runs one complete check-in: free-text prompt, the six-question
screening, tier classification, and safety-plan reordering. If the final
tier is a crisis the recheck loop starts immediately.`,
	RunE: runCheckin,
}

func runCheckin(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	eng, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	in := bufio.NewScanner(os.Stdin)

	fmt.Println("How are you doing today? (one line, Enter to finish)")
	fmt.Print("> ")
	transcript := ""
	if in.Scan() {
		transcript = strings.TrimSpace(in.Text())
	}

	answers, err := runQuestionnaire(in)
	if err != nil {
		return err
	}

	res, err := eng.orch.RunCheckIn(ctx, session.CheckInInputs{
		Transcript: transcript,
		Answers:    answers,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Risk level: %s (%s)\n", res.FinalTier.Label(), res.Source)
	fmt.Printf("  %s\n", res.Explanation)
	if len(res.Patterns) > 0 {
		names := make([]string, len(res.Patterns))
		for i, p := range res.Patterns {
			names[i] = string(p.Type)
		}
		fmt.Printf("Observed patterns: %s\n", strings.Join(names, ", "))
	}
	fmt.Printf("Safety plan order: %v\n", res.SafetyPlanOrder)

	explanation, _ := eng.orch.Explain(ctx, res.FinalTier, res.Driver, prompt.RecipientSelf)
	fmt.Printf("\n%s\n", explanation)

	if res.Crisis != nil {
		return runRecheckLoop(eng, in)
	}
	return nil
}

// runQuestionnaire walks the screening on the terminal. Answers are y/n;
// "b" steps back one question.
func runQuestionnaire(in *bufio.Scanner) (questionnaire.Answers, error) {
	fmt.Println()
	fmt.Println("A few standard screening questions. Answer y, n, or b to go back.")
	eng := questionnaire.NewEngine()
	for !eng.Done() {
		q := eng.CurrentQuestion()
		fmt.Printf("[%d/6] %s\n> ", q.Index, q.Text)
		if !in.Scan() {
			return questionnaire.Answers{}, fmt.Errorf("input closed mid-screening")
		}
		switch strings.ToLower(strings.TrimSpace(in.Text())) {
		case "y", "yes":
			eng.SubmitAnswer(true)
		case "n", "no":
			eng.SubmitAnswer(false)
		case "b", "back":
			eng.GoBack()
		default:
			fmt.Println("Please answer y, n, or b.")
		}
	}
	return eng.Finalize(), nil
}

// runRecheckLoop drives the crisis recheck conversation until the session
// resolves or input closes. The countdown runs in the background; the user
// cannot skip the wait before a recheck.
func runRecheckLoop(eng *engine, in *bufio.Scanner) error {
	machine := eng.orch.Crisis()

	done := make(chan struct{})
	defer close(done)
	go machine.RunCountdown(done, time.Second)

	fmt.Println()
	fmt.Println("A safety recheck has been scheduled. When the prompt appears,")
	fmt.Println("answer: 1 = feeling more stable, 2 = about the same, 3 = still not safe")

	for {
		cur := machine.Current()
		if cur == nil || cur.Status == crisis.StatusResolved {
			fmt.Println("Check complete. The episode is resolved.")
			return nil
		}

		if cur.Status != crisis.StatusRecheck {
			remaining := time.Until(cur.Deadline).Round(time.Second)
			if remaining > 0 {
				fmt.Printf("\rNext check in %v...   ", remaining)
			}
			time.Sleep(time.Second)
			continue
		}

		fmt.Print("\nHow are you feeling now? (1/2/3) > ")
		if !in.Scan() {
			return nil
		}
		var resp crisis.Response
		switch strings.TrimSpace(in.Text()) {
		case "1":
			resp = crisis.ResponseMoreStable
		case "2":
			resp = crisis.ResponseAboutTheSame
		case "3":
			resp = crisis.ResponseStillNotSafe
		default:
			fmt.Println("Please answer 1, 2, or 3.")
			continue
		}
		if err := machine.Respond(resp); err != nil {
			fmt.Println(err)
			continue
		}
		if cur := machine.Current(); cur != nil && cur.EscalationPending {
			fmt.Print("(press Enter once you have seen the escalation notice) ")
			if !in.Scan() {
				return nil
			}
			machine.DismissEscalation()
		}
	}
}
