package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"embednotify/internal/config"
	"embednotify/internal/dispatch"
	"embednotify/internal/history"
	"embednotify/internal/logging"
	"embednotify/internal/metrics"
	"embednotify/internal/notifications"
)

type notifyResultJSON struct {
	DatasourceID string `json:"datasource_id"`
	RequestID    string `json:"request_id"`
	Outcome      string `json:"outcome"`
	StatusCode   int    `json:"status_code,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	var hostFlag string
	var timeoutFlag time.Duration
	var concurrency int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "notify <datasource-id>...",
		Short: "Send embed-ready notifications to the web application",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if strings.TrimSpace(id) == "" {
					return errors.New("datasource id must not be empty")
				}
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			store := config.NewStore(cfg)

			timeout := time.Duration(cfg.Webapp.RequestTimeout) * time.Second
			if cmd.Flags().Changed("timeout") {
				timeout = timeoutFlag
			}

			recorder := metrics.NewRecorder()
			opts := []dispatch.Option{
				dispatch.WithLogger(logger),
				dispatch.WithHosts(store),
				dispatch.WithObserver(recorder),
				dispatch.WithConcurrency(concurrency),
			}

			if cfg.History.Enabled {
				journal, err := history.Open(cfg)
				if err != nil {
					return fmt.Errorf("open history: %w", err)
				}
				defer journal.Close()
				pruneHistory(cmd.Context(), journal, cfg.History.RetentionDays, logger)
				opts = append(opts, dispatch.WithJournal(journal))
			}

			svc := notifications.NewService(store, httpClient(timeout))
			results := dispatch.New(svc, opts...).NotifyAll(cmd.Context(), args)

			if err := recorder.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
				logger.Warn("metrics export failed", logging.Error(err))
			}

			if jsonOutput {
				if err := writeJSON(cmd, notifyResultsJSON(results)); err != nil {
					return err
				}
			} else {
				printNotifyResults(cmd, results)
			}

			if failed := dispatch.Failed(results); failed > 0 {
				return fmt.Errorf("%d of %d notifications failed", failed, len(results))
			}
			return nil
		},
	}

	ctx.hostOverride = &hostFlag
	cmd.Flags().StringVar(&hostFlag, "host", "", "Override webapp.host for this invocation")
	cmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "Per-request timeout (0 disables; default from webapp.request_timeout)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum notifications in flight")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	return cmd
}

func pruneHistory(ctx context.Context, journal *history.Store, retentionDays int, logger *slog.Logger) {
	if retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed, err := journal.Prune(ctx, cutoff)
	if err != nil {
		logger.Warn("history prune failed", logging.Error(err))
		return
	}
	if removed > 0 {
		logger.Debug("history pruned", logging.Int64("removed", removed), logging.Int("retention_days", retentionDays))
	}
}

func notifyResultsJSON(results []dispatch.Result) []notifyResultJSON {
	out := make([]notifyResultJSON, 0, len(results))
	for _, r := range results {
		item := notifyResultJSON{
			DatasourceID: r.DatasourceID,
			RequestID:    r.RequestID,
			Outcome:      string(r.Outcome),
			StatusCode:   r.StatusCode,
			DurationMS:   r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}
		out = append(out, item)
	}
	return out
}

func printNotifyResults(cmd *cobra.Command, results []dispatch.Result) {
	out := cmd.OutOrStdout()
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(out, "FAIL  %s: %v\n", r.DatasourceID, r.Err)
			continue
		}
		fmt.Fprintf(out, "OK    %s (%s)\n", r.DatasourceID, r.Duration.Round(time.Millisecond))
	}
}
