package engine

import (
	"maps"
	"strconv"
	"sync"
)

// Custom data keys the engine stores in saves.
const (
	CustomImageLayers = "image_layers"
	CustomMusicTracks = "music_tracks"
	CustomBackground  = "background"
)

// Stage is the presentation state managers drive: background, image
// layers, music tracks and the speaking character's portrait. Rendering
// and playback belong to whatever UI observes it.
type Stage interface {
	SetBackground(path string)
	ShowImage(layer int, path string)
	HideImage(layer int)
	PlayMusic(track int, path string, repeat bool)
	StopMusic(track int)
	SetPortrait(path string)
	Reset()
	Snapshot() SceneState
	Restore(SceneState)
}

// Track is one playing music channel.
type Track struct {
	Path   string `json:"path"`
	Repeat bool   `json:"repeat"`
}

// SceneState is a copy of everything on stage.
type SceneState struct {
	Background string        `json:"background,omitempty"`
	Layers     map[int]string `json:"layers,omitempty"`
	Tracks     map[int]Track  `json:"tracks,omitempty"`
	Portrait   string        `json:"portrait,omitempty"`
}

// CustomData encodes the state for a save's custom_data. Layer and track
// numbers become string keys.
func (s SceneState) CustomData() map[string]any {
	layers := make(map[string]any, len(s.Layers))
	for l, p := range s.Layers {
		layers[strconv.Itoa(l)] = p
	}
	tracks := make(map[string]any, len(s.Tracks))
	for n, t := range s.Tracks {
		tracks[strconv.Itoa(n)] = map[string]any{"path": t.Path, "repeat": t.Repeat}
	}
	return map[string]any{
		CustomImageLayers: layers,
		CustomMusicTracks: tracks,
		CustomBackground:  s.Background,
	}
}

// SceneStateFromCustomData decodes what CustomData produced. Unknown or
// malformed entries are skipped.
func SceneStateFromCustomData(custom map[string]any) SceneState {
	s := SceneState{Layers: map[int]string{}, Tracks: map[int]Track{}}
	s.Background, _ = custom[CustomBackground].(string)

	if layers, ok := custom[CustomImageLayers].(map[string]any); ok {
		for k, v := range layers {
			l, err := strconv.Atoi(k)
			p, isStr := v.(string)
			if err == nil && isStr {
				s.Layers[l] = p
			}
		}
	}
	if tracks, ok := custom[CustomMusicTracks].(map[string]any); ok {
		for k, v := range tracks {
			n, err := strconv.Atoi(k)
			m, isMap := v.(map[string]any)
			if err != nil || !isMap {
				continue
			}
			p, _ := m["path"].(string)
			repeat, _ := m["repeat"].(bool)
			s.Tracks[n] = Track{Path: p, Repeat: repeat}
		}
	}
	return s
}

// Scene is the in-memory Stage. OnChange, when set, is called after every
// change with the new state.
type Scene struct {
	mu       sync.Mutex
	state    SceneState
	OnChange func(SceneState)
}

// NewScene creates an empty scene.
func NewScene() *Scene {
	return &Scene{state: SceneState{Layers: map[int]string{}, Tracks: map[int]Track{}}}
}

func (s *Scene) update(fn func(*SceneState)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.snapshotLocked()
	notify := s.OnChange
	s.mu.Unlock()
	if notify != nil {
		notify(snap)
	}
}

func (s *Scene) SetBackground(path string) {
	s.update(func(st *SceneState) { st.Background = path })
}

func (s *Scene) ShowImage(layer int, path string) {
	s.update(func(st *SceneState) { st.Layers[layer] = path })
}

func (s *Scene) HideImage(layer int) {
	s.update(func(st *SceneState) { delete(st.Layers, layer) })
}

func (s *Scene) PlayMusic(track int, path string, repeat bool) {
	s.update(func(st *SceneState) { st.Tracks[track] = Track{Path: path, Repeat: repeat} })
}

func (s *Scene) StopMusic(track int) {
	s.update(func(st *SceneState) { delete(st.Tracks, track) })
}

func (s *Scene) SetPortrait(path string) {
	s.update(func(st *SceneState) { st.Portrait = path })
}

func (s *Scene) Reset() {
	s.update(func(st *SceneState) {
		*st = SceneState{Layers: map[int]string{}, Tracks: map[int]Track{}}
	})
}

func (s *Scene) Snapshot() SceneState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Scene) Restore(state SceneState) {
	s.update(func(st *SceneState) {
		*st = SceneState{
			Background: state.Background,
			Layers:     maps.Clone(state.Layers),
			Tracks:     maps.Clone(state.Tracks),
			Portrait:   state.Portrait,
		}
		if st.Layers == nil {
			st.Layers = map[int]string{}
		}
		if st.Tracks == nil {
			st.Tracks = map[int]Track{}
		}
	})
}

func (s *Scene) snapshotLocked() SceneState {
	return SceneState{
		Background: s.state.Background,
		Layers:     maps.Clone(s.state.Layers),
		Tracks:     maps.Clone(s.state.Tracks),
		Portrait:   s.state.Portrait,
	}
}
