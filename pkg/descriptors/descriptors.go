// Package descriptors derives the control surface from a SessionState:
// action, feedback and preset descriptors plus display variables. The
// whole set is regenerated from scratch on every mirror change; nothing
// is patched incrementally, which keeps the host's registration calls
// trivially idempotent.
package descriptors

import (
	"fmt"

	"github.com/tinyland-inc/stagelink/pkg/mirror"
)

// Color is an RGB triple for button styling.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// StylePair describes how a feedback paints a button in its active and
// inactive states.
type StylePair struct {
	ActiveText   Color
	ActiveBg     Color
	InactiveText Color
	InactiveBg   Color
}

// DefaultStyle is the documented default: saturated red when active, a
// neutral dark background otherwise.
func DefaultStyle() StylePair {
	return StylePair{
		ActiveText:   Color{255, 255, 255},
		ActiveBg:     Color{200, 0, 0},
		InactiveText: Color{255, 255, 255},
		InactiveBg:   Color{20, 20, 20},
	}
}

// Action is one invocable control. Command and Args feed the dispatcher
// unchanged when the host triggers the action.
type Action struct {
	ID      string
	Label   string
	Command string
	Args    []any
}

// Feedback kinds.
const (
	FeedbackSceneActive = "scene_active"
	FeedbackRecording   = "recording"
	FeedbackStreaming   = "streaming"
)

// Feedback is one observable boolean condition with its style pair.
type Feedback struct {
	ID      string
	Label   string
	Kind    string
	SceneID string // set for scene_active feedbacks
	Style   StylePair
}

// Evaluate resolves the feedback against a session state. A feedback
// referencing a scene that no longer exists evaluates false; stale
// references never raise.
func (f Feedback) Evaluate(s mirror.SessionState) bool {
	switch f.Kind {
	case FeedbackSceneActive:
		if f.SceneID == "" || f.SceneID != s.CurrentSceneID {
			return false
		}
		_, known := s.SceneByID(f.SceneID)
		return known
	case FeedbackRecording:
		return s.IsRecording
	case FeedbackStreaming:
		return s.IsStreaming
	default:
		return false
	}
}

// Preset bundles an action with its feedback and style for drag-and-drop
// button setup.
type Preset struct {
	ID         string
	Label      string
	ActionID   string
	FeedbackID string
	Style      StylePair
}

// Derived is the full regenerated descriptor set.
type Derived struct {
	Actions   []Action
	Feedbacks []Feedback
	Presets   []Preset
	Variables map[string]string
}

// Generate is a pure transform from session state to descriptors. Equal
// states yield descriptor sets equal in content; scene ordering follows
// the state's already-deterministic sort.
func Generate(s mirror.SessionState) Derived {
	d := Derived{
		Variables: make(map[string]string, 4),
	}

	for _, sc := range s.Scenes {
		d.Actions = append(d.Actions, Action{
			ID:      "show_scene:" + sc.ID,
			Label:   "Show scene " + sc.Name,
			Command: "show_scene",
			Args:    []any{sc.ID},
		})
	}
	d.Actions = append(d.Actions,
		Action{ID: "toggle_recording", Label: "Toggle recording", Command: "toggle_recording"},
		Action{ID: "start_recording", Label: "Start recording", Command: "start_recording"},
		Action{ID: "stop_recording", Label: "Stop recording", Command: "stop_recording"},
		Action{ID: "toggle_streaming", Label: "Toggle streaming", Command: "toggle_streaming"},
		Action{ID: "start_streaming", Label: "Start streaming", Command: "start_streaming"},
		Action{ID: "stop_streaming", Label: "Stop streaming", Command: "stop_streaming"},
		// Pass-through for studio capabilities the mirror does not
		// model; the host supplies method name and positional args.
		Action{ID: "custom_command", Label: "Custom studio command", Command: "custom_command"},
	)

	for _, sc := range s.Scenes {
		d.Feedbacks = append(d.Feedbacks, Feedback{
			ID:      "scene_active:" + sc.ID,
			Label:   "Scene " + sc.Name + " is live",
			Kind:    FeedbackSceneActive,
			SceneID: sc.ID,
			Style:   DefaultStyle(),
		})
	}
	d.Feedbacks = append(d.Feedbacks,
		Feedback{ID: "recording", Label: "Recording", Kind: FeedbackRecording, Style: DefaultStyle()},
		Feedback{ID: "streaming", Label: "Streaming", Kind: FeedbackStreaming, Style: DefaultStyle()},
	)

	for _, sc := range s.Scenes {
		d.Presets = append(d.Presets, Preset{
			ID:         "preset_scene:" + sc.ID,
			Label:      sc.Name,
			ActionID:   "show_scene:" + sc.ID,
			FeedbackID: "scene_active:" + sc.ID,
			Style:      DefaultStyle(),
		})
	}
	d.Presets = append(d.Presets,
		Preset{ID: "preset_recording", Label: "REC", ActionID: "toggle_recording", FeedbackID: "recording", Style: DefaultStyle()},
		Preset{ID: "preset_streaming", Label: "LIVE", ActionID: "toggle_streaming", FeedbackID: "streaming", Style: DefaultStyle()},
	)

	current := ""
	if sc, ok := s.CurrentScene(); ok {
		current = sc.Name
	}
	d.Variables["current_scene"] = current
	d.Variables["is_recording"] = onOff(s.IsRecording)
	d.Variables["is_streaming"] = onOff(s.IsStreaming)
	d.Variables["scene_count"] = fmt.Sprintf("%d", len(s.Scenes))

	return d
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
