package mirror

import "testing"

func TestCleanName(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Intro (abc12345)", "Intro"},
		{"Outro", "Outro"},
		{"Main (cam 1) (deadbeef)", "Main (cam 1)"},
		{"  Padded (x)  ", "Padded"},
		{"  Plain  ", "Plain"},
		{"  (only-id)  ", "(only-id)"},
		{"(only-id)", "(only-id)"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := CleanName(tc.raw); got != tc.want {
			t.Errorf("CleanName(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestSortScenesDeterministic(t *testing.T) {
	scenes := []SceneEntry{
		{ID: "z9", Name: "Camera", Order: 1},
		{ID: "a1", Name: "camera", Order: 1},
		{ID: "m5", Name: "Backdrop", Order: 0},
		{ID: "b2", Name: "Camera", Order: 1},
	}
	sortScenes(scenes)

	wantIDs := []string{"m5", "a1", "b2", "z9"}
	for i, want := range wantIDs {
		if scenes[i].ID != want {
			t.Fatalf("position %d: got %s, want %s (full: %+v)", i, scenes[i].ID, want, scenes)
		}
	}
}

func TestCurrentSceneResolution(t *testing.T) {
	s := SessionState{
		Scenes:         []SceneEntry{{ID: "a1", Name: "Intro"}},
		CurrentSceneID: "a1",
	}
	if sc, ok := s.CurrentScene(); !ok || sc.Name != "Intro" {
		t.Errorf("CurrentScene() = %+v, %v", sc, ok)
	}

	s.CurrentSceneID = "gone"
	if _, ok := s.CurrentScene(); ok {
		t.Error("stale current scene resolved")
	}

	s.CurrentSceneID = ""
	if _, ok := s.CurrentScene(); ok {
		t.Error("empty current scene resolved")
	}
}
