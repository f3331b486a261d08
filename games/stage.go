package games

import "fmt"

// Stage is the phase of the current round. It is sent to clients as its
// ordinal.
type Stage int

const (
	WaitingForPlayers Stage = iota
	EnteringPrompts
	GeneratingImages
	SelectingImage
	RevealingResults
)

var stageNames = [...]string{
	WaitingForPlayers: "WaitingForPlayers",
	EnteringPrompts:   "EnteringPrompts",
	GeneratingImages:  "GeneratingImages",
	SelectingImage:    "SelectingImage",
	RevealingResults:  "RevealingResults",
}

func (s Stage) Valid() bool {
	return s >= WaitingForPlayers && s <= RevealingResults
}

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// transitions lists the stages a client may move the game to with
// update-stage. GeneratingImages is entered and left only by a round.
var transitions = map[Stage][]Stage{
	WaitingForPlayers: {EnteringPrompts},
	EnteringPrompts:   {WaitingForPlayers},
	GeneratingImages:  {},
	SelectingImage:    {EnteringPrompts, RevealingResults, WaitingForPlayers},
	RevealingResults:  {EnteringPrompts, WaitingForPlayers},
}

// CanTransition reports whether a client may move the game from one stage
// to another. Staying put is always allowed.
func CanTransition(from, to Stage) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
