// Command simulator drives drafts against a running server. It is a
// development tool for exercising the draft flow without a browser.
package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/websocket"
	"github.com/spf13/cobra"
)

var (
	// Connection flags
	apiURL  string
	token   string
	timeout time.Duration

	// Draft flags
	setCode    string
	strategy   string
	restart    bool
	maxRetries int
)

var rootCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Draft simulator",
	Long:  `Simulator drives booster drafts against a running server over its REST API.`,
}

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Draft a full pool and print the Arena deck list",
	Long: `Draft enters (or resumes) the session's draft and confirms picks until the
draft is complete. Picks follow --strategy: "first" takes the first card,
"random" a random one and "model" the prediction service's top choice.`,
	RunE: runDraft,
}

var setsCmd = &cobra.Command{
	Use:   "sets",
	Short: "List the draftable sets",
	RunE:  runSets,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session's current draft",
	RunE:  runStatus,
}

func init() {
	defaultURL := "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		defaultURL = envURL
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultURL, "Backend base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("SESSION_TOKEN"), "Session token to resume")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Request timeout")

	draftCmd.Flags().StringVar(&setCode, "set", "", "Set code (server default when empty)")
	draftCmd.Flags().StringVar(&strategy, "strategy", "first", "Pick strategy: first, random or model")
	draftCmd.Flags().BoolVar(&restart, "restart", false, "Start over instead of resuming")
	draftCmd.Flags().IntVar(&maxRetries, "retries", 3, "Attempts to deal a booster after an upstream failure")

	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(setsCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newClient() (*APIClient, error) {
	client := NewAPIClient(strings.TrimRight(apiURL, "/"), timeout)
	session, err := client.StartSession(token)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	if session.Token != token {
		fmt.Printf("Session %s (resume with --token=%s)\n", session.SessionID, session.Token)
	}
	return client, nil
}

func runSets(_ *cobra.Command, _ []string) error {
	client := NewAPIClient(strings.TrimRight(apiURL, "/"), timeout)
	sets, err := client.ListSets()
	if err != nil {
		return err
	}
	for _, s := range sets {
		model := ""
		if s.HasModel {
			model = " (model)"
		}
		fmt.Printf("  %-6s %s%s\n", s.Code, s.Name, model)
	}
	return nil
}

func runStatus(_ *cobra.Command, _ []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	view, err := client.Draft()
	if err != nil {
		return err
	}
	printView(view)
	return nil
}

func runDraft(_ *cobra.Command, _ []string) error {
	switch strategy {
	case "first", "random", "model":
	default:
		return fmt.Errorf("unknown strategy %q", strategy)
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	if strategy == "model" {
		if err := client.EnablePredictions(true); err != nil {
			return fmt.Errorf("failed to enable predictions: %w", err)
		}
	}

	var view *websocket.DraftView
	if restart {
		view, err = client.Restart(setCode)
	} else {
		view, err = client.Enter(setCode)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Drafting %s\n", strings.ToUpper(view.SetCode))

	start := time.Now()
	for view.Phase != domain.PhaseComplete {
		switch view.Phase {
		case domain.PhaseStartingBooster:
			view, err = continueWithRetry(client)
		case domain.PhaseAwaitingHumanPick:
			card := choose(client, view)
			fmt.Printf("  Booster %d pick %2d: %s\n", view.Booster, view.Pick, card.Name)
			view, err = client.Pick(card.ID)
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.Status >= http.StatusInternalServerError {
				// The round resolved but the next booster failed to deal.
				view, err = client.Draft()
			}
		default:
			return fmt.Errorf("unexpected phase %q", view.Phase)
		}
		if err != nil {
			return err
		}
	}

	fmt.Printf("\nDraft complete in %s: %d cards\n\n", time.Since(start).Round(time.Millisecond), len(view.Picks))

	curve, err := client.Curve()
	if err != nil {
		return err
	}
	for _, col := range curve {
		fmt.Printf("  %d: %s\n", col.Value, strings.Repeat("#", len(col.Cards)))
	}

	list, err := client.Export()
	if err != nil {
		return err
	}
	fmt.Printf("\n%s\n", list)
	return nil
}

func continueWithRetry(client *APIClient) (*websocket.DraftView, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		view, err := client.Continue()
		if err == nil {
			return view, nil
		}
		lastErr = err
		fmt.Printf("  Booster deal failed (attempt %d/%d): %v\n", attempt, maxRetries, err)
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return nil, fmt.Errorf("giving up on next booster: %w", lastErr)
}

func choose(client *APIClient, view *websocket.DraftView) domain.Card {
	pack := view.Pack
	switch strategy {
	case "random":
		return pack[rand.IntN(len(pack))]
	case "model":
		if card, ok := modelChoice(client, pack); ok {
			return card
		}
	}
	return pack[0]
}

// modelChoice polls the prediction overlay briefly for the top-ranked card.
func modelChoice(client *APIClient, pack []domain.Card) (domain.Card, bool) {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		preds, err := client.Predictions()
		if err != nil {
			return domain.Card{}, false
		}
		if !preds.Pending && len(preds.Predictions) > 0 {
			for _, c := range pack {
				if c.Name == preds.Predictions[0].CardName {
					return c, true
				}
			}
			return domain.Card{}, false
		}
		time.Sleep(200 * time.Millisecond)
	}
	return domain.Card{}, false
}

func printView(view *websocket.DraftView) {
	fmt.Printf("Set:     %s\n", strings.ToUpper(view.SetCode))
	fmt.Printf("Phase:   %s\n", view.Phase)
	fmt.Printf("Booster: %d  Pick: %d  Passing: %s\n", view.Booster, view.Pick, view.Direction)
	fmt.Printf("Picks:   %d\n", len(view.Picks))
	if view.Error != nil {
		fmt.Printf("Error:   %s (%s)\n", view.Error.Message, view.Error.Code)
	}
	if len(view.Pack) > 0 {
		fmt.Println("Pack:")
		for _, c := range view.Pack {
			fmt.Printf("  [%d] %s\n", c.CMC, c.Name)
		}
	}
}
