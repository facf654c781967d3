// Package bootstrap installs kubarr's fixed set of first-boot
// infrastructure components (a metrics store, a log store, a log
// shipper) through Helm, running every component's install in parallel
// and streaming progress to the setup UI over a broadcast WebSocket.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kubarr/kubarr/internal/broadcast"
	"github.com/kubarr/kubarr/internal/db"
	"github.com/kubarr/kubarr/pkg/helm"
)

const (
	StatusPending    = "pending"
	StatusInstalling = "installing"
	StatusHealthy    = "healthy"
	StatusFailed     = "failed"
)

// pollInterval and maxAttempts bound how long a single component's health
// check is polled before the orchestrator gives up on it.
const (
	pollInterval = 5 * time.Second
	maxAttempts  = 60
)

// Component is one of the fixed infrastructure charts installed on first
// boot. Name doubles as both the Helm release name and the namespace it
// is deployed into.
type Component struct {
	Name        string
	DisplayName string
}

// DefaultComponents returns kubarr's first-boot install set.
func DefaultComponents() []Component {
	return []Component{
		{Name: "victoriametrics", DisplayName: "VictoriaMetrics"},
		{Name: "victorialogs", DisplayName: "VictoriaLogs"},
		{Name: "fluent-bit", DisplayName: "Fluent Bit"},
	}
}

// StatusEvent is broadcast to subscribers as the bootstrap sequence
// progresses. Type discriminates the five wire shapes; Progress and
// Error only appear on the event types that carry them.
type StatusEvent struct {
	Type      string `json:"type"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message,omitempty"`
	Progress  int    `json:"progress,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Orchestrator runs the bootstrap sequence and tracks progress in the
// database.
type Orchestrator struct {
	queries    *db.Queries
	logger     *slog.Logger
	helm       *helm.Driver
	components []Component
	topic      *broadcast.Topic[StatusEvent]
}

func NewOrchestrator(q *db.Queries, logger *slog.Logger, helmDriver *helm.Driver, components []Component) *Orchestrator {
	return &Orchestrator{
		queries:    q,
		logger:     logger,
		helm:       helmDriver,
		components: components,
		topic:      broadcast.NewTopic[StatusEvent](16),
	}
}

// Subscribe returns a channel of status events as the bootstrap sequence
// progresses, for the WebSocket endpoint.
func (o *Orchestrator) Subscribe() (<-chan StatusEvent, func()) {
	return o.topic.Subscribe()
}

// InitialiseStatus inserts a pending row for every component that does
// not already have one. Idempotent.
func (o *Orchestrator) InitialiseStatus(ctx context.Context) error {
	for _, c := range o.components {
		if err := o.queries.UpsertBootstrapComponent(ctx, c.Name, c.DisplayName); err != nil {
			return fmt.Errorf("registering component %s: %w", c.Name, err)
		}
	}
	return nil
}

// GetStatus returns the current status of every component, for the
// GET /bootstrap/status endpoint.
func (o *Orchestrator) GetStatus(ctx context.Context) ([]db.BootstrapComponent, error) {
	return o.queries.ListBootstrapComponents(ctx)
}

// IsComplete reports whether every component is healthy. An empty status
// table (InitialiseStatus never ran) is not complete.
func (o *Orchestrator) IsComplete(ctx context.Context) bool {
	rows, err := o.GetStatus(ctx)
	if err != nil || len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		if r.Status != StatusHealthy {
			return false
		}
	}
	return true
}

// HasStarted reports whether at least one component has left the pending
// state or recorded a start time.
func (o *Orchestrator) HasStarted(ctx context.Context) bool {
	rows, err := o.GetStatus(ctx)
	if err != nil {
		return false
	}
	for _, r := range rows {
		if r.Status != StatusPending || r.StartedAt != nil {
			return true
		}
	}
	return false
}

// Start launches every component that is not already healthy in
// parallel, each in its own goroutine, and returns once the last one
// finishes. When every component ends up healthy it broadcasts
// bootstrap_complete.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.InitialiseStatus(ctx); err != nil {
		return err
	}

	rows, err := o.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading bootstrap status: %w", err)
	}
	healthy := make(map[string]bool, len(rows))
	for _, r := range rows {
		healthy[r.Component] = r.Status == StatusHealthy
	}

	var wg sync.WaitGroup
	for _, c := range o.components {
		if healthy[c.Name] {
			continue
		}
		wg.Add(1)
		go func(c Component) {
			defer wg.Done()
			o.installComponent(ctx, c)
		}(c)
	}
	wg.Wait()

	if o.IsComplete(ctx) {
		o.topic.Publish(StatusEvent{Type: "bootstrap_complete", Message: "All system components installed successfully"})
	}
	return nil
}

// HasComponent reports whether name is one of the orchestrator's known
// components.
func (o *Orchestrator) HasComponent(name string) bool {
	_, ok := o.find(name)
	return ok
}

func (o *Orchestrator) find(name string) (Component, bool) {
	for _, c := range o.components {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

// Retry resets component's row to pending and re-runs its install path.
// Installation runs synchronously in the caller's goroutine; callers that
// don't want to block for the full health-check loop should call it from
// a goroutine of their own.
func (o *Orchestrator) Retry(ctx context.Context, component string) error {
	target, ok := o.find(component)
	if !ok {
		return fmt.Errorf("unknown component: %s", component)
	}

	o.setStatus(ctx, target.Name, StatusPending, "Retrying installation...", "", false, false)
	o.installComponent(ctx, target)
	return nil
}

// installComponent runs the full per-component sequence: deploy via
// Helm, then poll health until it passes or the attempt budget runs out.
func (o *Orchestrator) installComponent(ctx context.Context, c Component) {
	startMsg := fmt.Sprintf("Installing %s...", c.DisplayName)
	o.setStatus(ctx, c.Name, StatusInstalling, startMsg, "", true, false)
	o.topic.Publish(StatusEvent{Type: "component_started", Component: c.Name, Message: startMsg})

	if err := o.helm.Deploy(ctx, c.Name, nil); err != nil {
		errMsg := fmt.Sprintf("Failed to deploy %s: %v", c.DisplayName, err)
		o.setStatus(ctx, c.Name, StatusFailed, "Installation failed", errMsg, false, true)
		o.topic.Publish(StatusEvent{
			Type: "component_failed", Component: c.Name,
			Message: fmt.Sprintf("%s installation failed", c.DisplayName), Error: errMsg,
		})
		return
	}

	o.topic.Publish(StatusEvent{
		Type: "component_progress", Component: c.Name,
		Message: fmt.Sprintf("Deployed %s, waiting for health check...", c.DisplayName), Progress: 50,
	})

	if o.pollHealth(ctx, c) {
		msg := fmt.Sprintf("%s is running", c.DisplayName)
		o.setStatus(ctx, c.Name, StatusHealthy, msg, "", false, true)
		o.topic.Publish(StatusEvent{
			Type: "component_completed", Component: c.Name,
			Message: fmt.Sprintf("%s installed successfully", c.DisplayName),
		})
		return
	}

	errMsg := fmt.Sprintf("%s did not become healthy within timeout", c.DisplayName)
	o.setStatus(ctx, c.Name, StatusFailed, "Health check timeout", errMsg, false, true)
	o.topic.Publish(StatusEvent{
		Type: "component_failed", Component: c.Name,
		Message: fmt.Sprintf("%s health check failed", c.DisplayName), Error: errMsg,
	})
}

// pollHealth polls the component's namespace health every pollInterval
// up to maxAttempts times, broadcasting progress capped at 99, and
// returns true on the first healthy result.
func (o *Orchestrator) pollHealth(ctx context.Context, c Component) bool {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}

		report, err := o.helm.CheckHealth(ctx, c.Name)
		if err == nil && report.Healthy {
			return true
		}

		progress := progressForAttempt(attempt)
		o.topic.Publish(StatusEvent{
			Type: "component_progress", Component: c.Name,
			Message:  fmt.Sprintf("Waiting for %s to become healthy... (%d/%d)", c.DisplayName, attempt, maxAttempts),
			Progress: progress,
		})
	}
	return false
}

// progressForAttempt maps a health-poll attempt number to the progress
// value broadcast alongside it: starts just past the 50% mark left by the
// deploy step and climbs monotonically, capped at 99 so only the final
// healthy result ever reports 100.
func progressForAttempt(attempt int) int {
	progress := 50 + (attempt*50+maxAttempts-1)/maxAttempts
	if progress > 99 {
		progress = 99
	}
	return progress
}

func (o *Orchestrator) setStatus(ctx context.Context, component, status, message, errMsg string, started, completed bool) {
	if err := o.queries.SetBootstrapStatus(ctx, component, status, message, errMsg, started, completed); err != nil {
		o.logger.Error("bootstrap: persisting status", "component", component, "error", err)
	}
}
