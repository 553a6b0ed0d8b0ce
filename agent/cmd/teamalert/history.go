package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teamalert/teamalert/agent/internal/alert"
	"github.com/teamalert/teamalert/agent/internal/history"
)

var (
	historyDB    string
	historyLast  int
	historyAlert string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent alert transitions from the journal",
	RunE:  showHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyDB, "db", "teamalert.db", "Path to the history database")
	historyCmd.Flags().IntVar(&historyLast, "last", 20, "Number of transitions to show")
	historyCmd.Flags().StringVar(&historyAlert, "alert", "", "Only show transitions of this alert")
}

func showHistory(cmd *cobra.Command, args []string) error {
	if historyLast < 1 {
		return fmt.Errorf("--last must be at least 1, got %d", historyLast)
	}
	j, err := history.Open(historyDB)
	if err != nil {
		return err
	}
	defer j.Close()

	var events []alert.Event
	if historyAlert != "" {
		events, err = j.ForAlert(cmd.Context(), historyAlert, historyLast)
	} else {
		events, err = j.Recent(cmd.Context(), historyLast)
	}
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Printf("No transitions recorded in %s.\n", j.Path())
		return nil
	}

	fmt.Println(styleHeader.Render(fmt.Sprintf("%-20s %-30s %-8s %-8s %-8s %s",
		"TIME", "ALERT", "COLOR", "FROM", "FLASHED", "UNCLAIMED")))
	for _, ev := range events {
		name := ev.Alert
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		from := string(ev.PrevColor)
		if from == "" {
			from = "-"
		}
		fmt.Printf("%-20s %-30s %s %-8s %-8s %s\n",
			ev.At.Local().Format(time.DateTime),
			name,
			renderColor(ev.Color)+strings.Repeat(" ", max(0, 8-len(ev.Color))),
			from,
			yesNo(ev.Flashed),
			strings.Join(ev.Unclaimed, ", "),
		)
	}
	return nil
}
