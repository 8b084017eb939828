// Package host defines the boundary to the external collaborator, the
// control-surface plugin layer that renders buttons. The core only ever
// talks to it through these registration callbacks, each of which is
// idempotent and carries a full replacement, never an incremental patch.
package host

import (
	"sync"

	"github.com/tinyland-inc/stagelink/pkg/descriptors"
	"github.com/tinyland-inc/stagelink/pkg/logger"
	"github.com/tinyland-inc/stagelink/pkg/transport"
)

// Host receives regenerated descriptor sets and status updates.
type Host interface {
	RegisterActions(actions []descriptors.Action)
	RegisterFeedbacks(feedbacks []descriptors.Feedback)
	RegisterPresets(presets []descriptors.Preset)
	SetVariables(values map[string]string)
	SetConnectionStatus(status transport.Status, detail string)
}

// LogHost is the host used by the standalone CLI: it just logs what a
// real plugin layer would render.
type LogHost struct{}

func (LogHost) RegisterActions(actions []descriptors.Action) {
	logger.InfoCF("host", "Actions registered", map[string]any{"count": len(actions)})
}

func (LogHost) RegisterFeedbacks(feedbacks []descriptors.Feedback) {
	logger.InfoCF("host", "Feedbacks registered", map[string]any{"count": len(feedbacks)})
}

func (LogHost) RegisterPresets(presets []descriptors.Preset) {
	logger.InfoCF("host", "Presets registered", map[string]any{"count": len(presets)})
}

func (LogHost) SetVariables(values map[string]string) {
	logger.InfoCF("host", "Variables updated", map[string]any{
		"current_scene": values["current_scene"],
		"is_recording":  values["is_recording"],
		"is_streaming":  values["is_streaming"],
	})
}

func (LogHost) SetConnectionStatus(status transport.Status, detail string) {
	logger.InfoCF("host", "Connection status", map[string]any{
		"status": string(status),
		"detail": detail,
	})
}

// Recorder captures the latest registration of each kind. Used by tests
// and by the console's `show` command.
type Recorder struct {
	mu        sync.Mutex
	Actions   []descriptors.Action
	Feedbacks []descriptors.Feedback
	Presets   []descriptors.Preset
	Variables map[string]string
	Status    transport.Status
	Detail    string
	Updates   int
}

func (r *Recorder) RegisterActions(actions []descriptors.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Actions = actions
	r.Updates++
}

func (r *Recorder) RegisterFeedbacks(feedbacks []descriptors.Feedback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Feedbacks = feedbacks
}

func (r *Recorder) RegisterPresets(presets []descriptors.Preset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Presets = presets
}

func (r *Recorder) SetVariables(values map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Variables = values
}

func (r *Recorder) SetConnectionStatus(status transport.Status, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = status
	r.Detail = detail
}

// SnapshotPresets returns a copy of the last registered preset set.
func (r *Recorder) SnapshotPresets() []descriptors.Preset {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]descriptors.Preset(nil), r.Presets...)
}

// Snapshot returns a consistent copy of everything recorded so far.
func (r *Recorder) Snapshot() (actions []descriptors.Action, vars map[string]string, status transport.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions = append(actions, r.Actions...)
	vars = make(map[string]string, len(r.Variables))
	for k, v := range r.Variables {
		vars[k] = v
	}
	return actions, vars, r.Status
}
