package mirror

import (
	"regexp"
	"sort"
	"strings"
)

// SceneEntry is the local record for one remote scene. The ID is the
// studio's opaque identifier and stays stable for the session; the Name
// is the cleaned display label.
type SceneEntry struct {
	ID    string
	Name  string
	Order int
}

// SessionState is the canonical local copy of the studio session. The
// mirror owns the only mutable instance; State() hands out copies.
//
// CurrentSceneID may briefly reference an ID missing from Scenes when a
// currentSceneChanged signal races a sessionChanged replacement. That is
// a known property of the wire protocol, not corruption: consumers must
// treat an unknown current ID as "no scene active".
type SessionState struct {
	Scenes         []SceneEntry
	CurrentSceneID string
	IsRecording    bool
	IsStreaming    bool
}

// SceneByID looks a scene up by its remote identifier.
func (s SessionState) SceneByID(id string) (SceneEntry, bool) {
	for _, sc := range s.Scenes {
		if sc.ID == id {
			return sc, true
		}
	}
	return SceneEntry{}, false
}

// CurrentScene resolves CurrentSceneID against the scene set. ok is
// false when no scene is live or the ID is stale.
func (s SessionState) CurrentScene() (SceneEntry, bool) {
	if s.CurrentSceneID == "" {
		return SceneEntry{}, false
	}
	return s.SceneByID(s.CurrentSceneID)
}

func (s SessionState) clone() SessionState {
	out := s
	out.Scenes = make([]SceneEntry, len(s.Scenes))
	copy(out.Scenes, s.Scenes)
	return out
}

// sortScenes orders scenes by display priority, then case-insensitive
// name, then ID, so every generated list is deterministic regardless of
// discovery order.
func sortScenes(scenes []SceneEntry) {
	sort.Slice(scenes, func(i, j int) bool {
		a, b := scenes[i], scenes[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
}

var trailingParen = regexp.MustCompile(`\s*\([^()]*\)$`)

// CleanName strips one trailing parenthetical suffix from a raw scene
// label so internal identifiers like "Intro (abc12345)" are not shown to
// the operator. The raw ID is unaffected; lookups never use the name.
func CleanName(raw string) string {
	// The regex is anchored at end-of-string, so padding must go first
	// or a label like "  Padded (x)  " keeps its suffix.
	trimmed := strings.TrimSpace(raw)
	cleaned := strings.TrimSpace(trailingParen.ReplaceAllString(trimmed, ""))
	if cleaned == "" {
		return trimmed
	}
	return cleaned
}
