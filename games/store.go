package games

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Store owns the game state and the per-player image cache. Both live for
// the life of the process and are never persisted.
type Store struct {
	mu       sync.RWMutex
	settings Settings
	images   map[string][]string

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		settings: DefaultSettings(),
		images:   make(map[string][]string),
		now:      time.Now,
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.settings.Clone()
}

func (s *Store) Stage() Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.settings.Stage
}

// HasUser reports whether name is a current player.
func (s *Store) HasUser(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.settings.Users[name]
	return ok
}

// Reset puts the state back to a fresh default. The image cache is left
// alone; the next round replaces it.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = DefaultSettings()
}

// RenameUser moves oldName's prompt to newName. Renaming a player that
// does not exist adds newName with an empty prompt.
func (s *Store) RenameUser(oldName, newName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompt := s.settings.Users[oldName]
	delete(s.settings.Users, oldName)
	s.settings.Users[newName] = prompt
}

func (s *Store) SetPrompt(user, prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Users[user] = prompt
}

func (s *Store) RemoveUser(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.settings.Users, user)
}

func (s *Store) SetChallenge(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Challenge = text
}

// SetStage overwrites the stage without checking the transition.
func (s *Store) SetStage(stage Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Stage = stage
}

// StartTimer sets the countdown to end d from now and moves the game to
// EnteringPrompts. Expiry is not enforced server-side.
func (s *Store) StartTimer(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.now().Add(d)
	s.settings.TimerEnd = &end
	s.settings.Stage = EnteringPrompts
}

func (s *Store) SelectImage(user string, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.ImageSelections[user] = index
}

// Images returns the images generated for user in the last round.
func (s *Store) Images(user string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	images, ok := s.images[user]
	if !ok {
		return nil, false
	}
	return slices.Clone(images), true
}

// ImageCount returns how many images user has this round, or -1 if none
// were generated for them.
func (s *Store) ImageCount(user string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	images, ok := s.images[user]
	if !ok {
		return -1
	}
	return len(images)
}

// BeginRound moves the game to GeneratingImages and returns the players and
// prompts the round will render.
func (s *Store) BeginRound() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Stage = GeneratingImages
	return maps.Clone(s.settings.Users)
}

// CompleteRound installs a round's results. The cache is replaced, the old
// selections are dropped and the stage moves to SelectingImage in a single
// step, so no reader sees SelectingImage next to a stale cache.
func (s *Store) CompleteRound(results map[string][]string) {
	images := make(map[string][]string, len(results))
	for user, imgs := range results {
		images[user] = slices.Clone(imgs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.images = images
	s.settings.ImageSelections = make(map[string]int)
	s.settings.Stage = SelectingImage
}

func (s *Store) ClearImages() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.images = make(map[string][]string)
}
