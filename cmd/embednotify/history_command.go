package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"embednotify/internal/history"
)

type attemptJSON struct {
	ID           int64  `json:"id"`
	DatasourceID string `json:"datasource_id"`
	RequestID    string `json:"request_id"`
	URL          string `json:"url"`
	Outcome      string `json:"outcome"`
	StatusCode   int    `json:"status_code,omitempty"`
	Error        string `json:"error,omitempty"`
	StartedAt    string `json:"started_at"`
	DurationMS   int64  `json:"duration_ms"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var datasourceID string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent embed-ready notification attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "History journal is disabled (history.enabled = false)")
				return nil
			}

			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			var attempts []history.Attempt
			if id := strings.TrimSpace(datasourceID); id != "" {
				attempts, err = store.ForDatasource(cmd.Context(), id, limit)
			} else {
				attempts, err = store.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, attemptsJSON(attempts))
			}
			if len(attempts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notification attempts recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderAttempts(attempts))
			return nil
		},
	}

	cmd.Flags().StringVar(&datasourceID, "datasource", "", "Only show attempts for this datasource id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum attempts to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output attempts as JSON")
	return cmd
}

func renderAttempts(attempts []history.Attempt) string {
	columns := []column{
		{title: "ID", numeric: true},
		{title: "Started"},
		{title: "Datasource"},
		{title: "Outcome"},
		{title: "Status", numeric: true},
		{title: "Duration", numeric: true},
		{title: "Error"},
	}
	rows := make([][]string, 0, len(attempts))
	for _, attempt := range attempts {
		status := "-"
		if attempt.StatusCode != 0 {
			status = strconv.Itoa(attempt.StatusCode)
		}
		rows = append(rows, []string{
			strconv.FormatInt(attempt.ID, 10),
			attempt.StartedAt.Local().Format("2006-01-02 15:04:05"),
			attempt.DatasourceID,
			outcomeLabel(attempt.Outcome),
			status,
			attempt.Duration.Round(time.Millisecond).String(),
			truncate(attempt.Error, 60),
		})
	}
	return renderTable(columns, rows)
}

// outcomeLabel renders "transport_error" as "Transport Error".
func outcomeLabel(outcome history.Outcome) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(outcome), "_", " "))
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func attemptsJSON(attempts []history.Attempt) []attemptJSON {
	out := make([]attemptJSON, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptJSON{
			ID:           a.ID,
			DatasourceID: a.DatasourceID,
			RequestID:    a.RequestID,
			URL:          a.URL,
			Outcome:      string(a.Outcome),
			StatusCode:   a.StatusCode,
			Error:        a.Error,
			StartedAt:    a.StartedAt.UTC().Format(time.RFC3339Nano),
			DurationMS:   a.Duration.Milliseconds(),
		})
	}
	return out
}
