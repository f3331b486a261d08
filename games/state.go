package games

import (
	"maps"
	"time"
)

// Settings is the whole shared game state. It is what every client
// receives in the settings event.
type Settings struct {
	Stage           Stage             `json:"stage"`
	Users           map[string]string `json:"users"`
	TimerEnd        *time.Time        `json:"timerEnd"`
	Challenge       string            `json:"challenge"`
	ImageSelections map[string]int    `json:"imageSelections"`
}

func DefaultSettings() Settings {
	return Settings{
		Stage:           WaitingForPlayers,
		Users:           make(map[string]string),
		ImageSelections: make(map[string]int),
	}
}

// Clone returns a deep copy that shares nothing with s.
func (s Settings) Clone() Settings {
	out := s

	out.Users = maps.Clone(s.Users)
	if out.Users == nil {
		out.Users = make(map[string]string)
	}

	out.ImageSelections = maps.Clone(s.ImageSelections)
	if out.ImageSelections == nil {
		out.ImageSelections = make(map[string]int)
	}

	if s.TimerEnd != nil {
		end := *s.TimerEnd
		out.TimerEnd = &end
	}

	return out
}
