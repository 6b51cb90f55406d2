// internal/bot/watchdog/handler.go
package watchdog

import (
	"context"

	"intake-bot/internal/catalog"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/metrics"
	"intake-bot/internal/store"
)

const TaskType = "staleness-watchdog"

// StallNotifier escalates one stalled application.
type StallNotifier interface {
	NotifyStalled(ctx context.Context, app store.StalledApplication, stepLabel string)
}

// Report summarizes one sweep.
type Report struct {
	Scanned   int `json:"scanned"`
	Escalated int `json:"escalated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Handler sweeps for applications that stopped making progress. The dedup
// mark is claimed before the fan-out and is keyed on updated_at, so
// overlapping sweeps cannot double-escalate and any new progress re-arms
// the episode.
type Handler struct {
	config   *Config
	apps     *store.ApplicationStore
	catalog  *catalog.Service
	dedup    *store.DedupStore
	notifier StallNotifier
	logger   logger.Logger
}

func NewHandler(config *Config, apps *store.ApplicationStore, cat *catalog.Service, dedup *store.DedupStore, notifier StallNotifier, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		apps:     apps,
		catalog:  cat,
		dedup:    dedup,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Run performs one sweep. Per-application failures are counted, not fatal.
func (h *Handler) Run(ctx context.Context) (*Report, error) {
	stalled, err := h.apps.ListStalled(ctx, h.config.StallThreshold, h.config.BatchLimit)
	if err != nil {
		return nil, err
	}
	metrics.WatchdogStalled.Set(float64(len(stalled)))

	labels := h.stepLabels(ctx)

	report := &Report{Scanned: len(stalled)}
	for _, app := range stalled {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		acquired, err := h.dedup.AcquireMark(ctx, store.StallKey(app.ID, app.UpdatedAt), h.config.DedupTTL)
		if err != nil {
			report.Failed++
			h.logger.Error("stall dedup check failed", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err.Error(),
			})
			continue
		}
		if !acquired {
			report.Skipped++
			continue
		}

		label := labels[app.CurrentStep]
		if label == "" {
			label = app.CurrentStep
		}
		h.notifier.NotifyStalled(ctx, app, label)
		report.Escalated++
	}

	h.logger.Info("watchdog sweep finished", map[string]interface{}{
		"scanned":   report.Scanned,
		"escalated": report.Escalated,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
	})
	return report, nil
}

// stepLabels maps step ids to prompts for readable escalations. A catalog
// failure degrades to raw step ids.
func (h *Handler) stepLabels(ctx context.Context) map[string]string {
	labels := map[string]string{}
	steps, err := h.catalog.Steps(ctx)
	if err != nil {
		h.logger.Warn("catalog unavailable for step labels", map[string]interface{}{
			"error": err.Error(),
		})
		return labels
	}
	for _, s := range steps {
		labels[s.StepID] = s.Prompt
	}
	return labels
}
