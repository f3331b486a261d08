package games

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Events sent by clients.
const (
	EventReset           = "reset"
	EventUpdateUsername  = "update-username"
	EventStartTimer      = "start-timer"
	EventUpdatePrompt    = "update-prompt"
	EventRemovePlayer    = "remove-player"
	EventUpdateChallenge = "update-challenge"
	EventUpdateStage     = "update-stage"
	EventGenerateImages  = "generate-images"
	EventSelectImage     = "select-image"
)

// Events sent by the server.
const (
	EventSettings = "settings"
	EventError    = "error"
)

// Envelope is a single frame on the socket, in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type UserNameUpdate struct {
	Old string `json:"old"`
	New string `json:"new"`
}

type Prompt struct {
	User   string `json:"user"`
	Prompt string `json:"prompt"`
}

type ImageSelectUpdate struct {
	UserName string `json:"userName"`
	Index    int    `json:"index"`
}

// ErrorMessage is the payload of the error event.
type ErrorMessage struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

func encode(event string, data any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: data})
}

// ParseEnvelope decodes a raw frame from a client.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope

	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, reject("", fmt.Errorf("%w: %v", ErrMalformedPayload, err))
	}
	if env.Event == "" {
		return Envelope{}, reject("", fmt.Errorf("%w: missing event name", ErrMalformedPayload))
	}

	return env, nil
}

// decodeData unmarshals an event payload strictly: unknown fields and
// missing data are rejected.
func decodeData(env Envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return reject(env.Event, fmt.Errorf("%w: missing data", ErrMalformedPayload))
	}

	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return reject(env.Event, fmt.Errorf("%w: %v", ErrMalformedPayload, err))
	}

	return nil
}

// normalizeName is applied to every player name a client sends, so "bob"
// and "bob " are the same player.
func normalizeName(name string) string {
	return strings.TrimSpace(name)
}

func decodeUserNameUpdate(env Envelope) (UserNameUpdate, error) {
	var u UserNameUpdate
	if err := decodeData(env, &u); err != nil {
		return u, err
	}

	u.Old = normalizeName(u.Old)
	u.New = normalizeName(u.New)
	if u.New == "" {
		return u, reject(env.Event, fmt.Errorf("%w: new name is empty", ErrMalformedPayload))
	}

	return u, nil
}

func decodePrompt(env Envelope) (Prompt, error) {
	var p Prompt
	if err := decodeData(env, &p); err != nil {
		return p, err
	}

	p.User = normalizeName(p.User)
	if p.User == "" {
		return p, reject(env.Event, fmt.Errorf("%w: user is empty", ErrMalformedPayload))
	}

	return p, nil
}

// MaxTimerSeconds bounds start-timer; a round is never a day long.
const MaxTimerSeconds = 24 * 60 * 60

func decodeSeconds(env Envelope) (int, error) {
	var seconds int
	if err := decodeData(env, &seconds); err != nil {
		return 0, err
	}

	if seconds < 0 || seconds > MaxTimerSeconds {
		return 0, reject(env.Event, fmt.Errorf("%w: duration %d not in [0, %d]", ErrMalformedPayload, seconds, MaxTimerSeconds))
	}

	return seconds, nil
}

func decodeString(env Envelope) (string, error) {
	var s string
	if err := decodeData(env, &s); err != nil {
		return "", err
	}

	return s, nil
}

// decodeName reads a bare player name.
func decodeName(env Envelope) (string, error) {
	name, err := decodeString(env)
	if err != nil {
		return "", err
	}

	return normalizeName(name), nil
}

func decodeStage(env Envelope) (Stage, error) {
	var n int
	if err := decodeData(env, &n); err != nil {
		return 0, err
	}

	stage := Stage(n)
	if !stage.Valid() {
		return 0, reject(env.Event, fmt.Errorf("%w: unknown stage %d", ErrMalformedPayload, n))
	}

	return stage, nil
}

func decodeImageSelect(env Envelope) (ImageSelectUpdate, error) {
	var sel ImageSelectUpdate
	if err := decodeData(env, &sel); err != nil {
		return sel, err
	}

	sel.UserName = normalizeName(sel.UserName)
	if sel.UserName == "" {
		return sel, reject(env.Event, fmt.Errorf("%w: userName is empty", ErrMalformedPayload))
	}

	return sel, nil
}
