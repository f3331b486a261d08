package games

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendBuffer     = 16
	maxMessageSize = 64 * 1024
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10

	minReapInterval = time.Second
)

type Client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		id:   uuid.NewString(),
	}
}

type inboundMessage struct {
	client *Client
	raw    []byte
}

type HubOptions struct {
	Orchestrator *Orchestrator

	// AllowStageOverride lets update-stage jump to any stage, for a host
	// who needs to unstick a round.
	AllowStageOverride bool

	// IdleTimeout resets the game once nobody has been connected for this
	// long. Zero disables it.
	IdleTimeout time.Duration

	Logf func(format string, args ...any)
}

// Hub is the single room. One goroutine (Run) owns the client set and
// applies every event in arrival order, so mutations never interleave.
type Hub struct {
	store         *Store
	orch          *Orchestrator
	allowOverride bool
	idleTimeout   time.Duration
	logf          func(format string, args ...any)

	clients  map[*Client]bool
	register chan *Client
	unreg    chan *Client
	inbound  chan inboundMessage
	rounds   chan map[string][]string
	done     chan struct{}

	generating bool
	lastActive time.Time
	now        func() time.Time
}

func NewHub(store *Store, opts HubOptions) *Hub {
	h := &Hub{
		store:         store,
		orch:          opts.Orchestrator,
		allowOverride: opts.AllowStageOverride,
		idleTimeout:   opts.IdleTimeout,
		logf:          opts.Logf,
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unreg:         make(chan *Client),
		inbound:       make(chan inboundMessage),
		rounds:        make(chan map[string][]string),
		done:          make(chan struct{}),
		now:           time.Now,
	}

	if h.logf == nil {
		h.logf = func(string, ...any) {}
	}

	h.lastActive = h.now()

	return h
}

// Run processes events until ctx is cancelled. Generation rounds already
// in flight are not cancelled with it.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	roundCtx := context.WithoutCancel(ctx)

	var reap <-chan time.Time
	if h.idleTimeout > 0 {
		ticker := time.NewTicker(max(h.idleTimeout/2, minReapInterval))
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.clients[c] = true
			h.lastActive = h.now()
			h.logf("GAMES: Client %s connected (%d total)", c.id, len(h.clients))

			// Late joiners get the current state, nothing else.
			h.sendSettings(c)

		case c := <-h.unreg:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.lastActive = h.now()
			h.logf("GAMES: Client %s disconnected (%d total)", c.id, len(h.clients))

		case m := <-h.inbound:
			h.lastActive = h.now()
			h.handle(ctx, roundCtx, m)

		case results := <-h.rounds:
			h.lastActive = h.now()
			h.finishRound(results)

		case now := <-reap:
			h.reapIdle(now)
		}
	}
}

func (h *Hub) handle(ctx, roundCtx context.Context, m inboundMessage) {
	env, err := ParseEnvelope(m.raw)
	if err == nil {
		err = h.dispatch(ctx, roundCtx, env)
	}

	if err != nil {
		h.logf("GAMES: Rejected %q from %s: %v", env.Event, m.client.id, err)
		h.sendError(m.client, env.Event, err)
		return
	}

	h.broadcastSettings()
}

// dispatch applies one client event to the store. A nil return means the
// state changed and must be broadcast.
func (h *Hub) dispatch(ctx, roundCtx context.Context, env Envelope) error {
	switch env.Event {
	case EventReset:
		h.logf("GAMES: Resetting")
		h.store.Reset()

	case EventUpdateUsername:
		u, err := decodeUserNameUpdate(env)
		if err != nil {
			return err
		}
		if u.Old != u.New && h.store.HasUser(u.New) {
			return reject(env.Event, fmt.Errorf("%w: %q", ErrNameTaken, u.New))
		}
		h.logf("GAMES: Renamed player %q to %q", u.Old, u.New)
		h.store.RenameUser(u.Old, u.New)

	case EventStartTimer:
		seconds, err := decodeSeconds(env)
		if err != nil {
			return err
		}
		h.logf("GAMES: Starting %ds timer", seconds)
		h.store.StartTimer(time.Duration(seconds) * time.Second)

	case EventUpdatePrompt:
		p, err := decodePrompt(env)
		if err != nil {
			return err
		}
		h.logf("GAMES: Received prompt from %q: %q", p.User, p.Prompt)
		h.store.SetPrompt(p.User, p.Prompt)

	case EventRemovePlayer:
		user, err := decodeName(env)
		if err != nil {
			return err
		}
		h.logf("GAMES: Removed player %q", user)
		h.store.RemoveUser(user)

	case EventUpdateChallenge:
		challenge, err := decodeString(env)
		if err != nil {
			return err
		}
		h.logf("GAMES: Updated challenge: %q", challenge)
		h.store.SetChallenge(challenge)

	case EventUpdateStage:
		stage, err := decodeStage(env)
		if err != nil {
			return err
		}
		current := h.store.Stage()
		if !h.allowOverride && !CanTransition(current, stage) {
			return reject(env.Event, fmt.Errorf("%w: %s to %s", ErrIllegalTransition, current, stage))
		}
		h.logf("GAMES: Updated stage: %s", stage)
		h.store.SetStage(stage)

	case EventGenerateImages:
		if h.generating {
			return reject(env.Event, ErrRoundInProgress)
		}
		h.startRound(ctx, roundCtx)

	case EventSelectImage:
		sel, err := decodeImageSelect(env)
		if err != nil {
			return err
		}
		count := h.store.ImageCount(sel.UserName)
		if count < 0 {
			return reject(env.Event, fmt.Errorf("%w: %q", ErrNoImages, sel.UserName))
		}
		if sel.Index < 0 || sel.Index >= count {
			return reject(env.Event, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, sel.Index, count))
		}
		h.logf("GAMES: Selected image %d for %q", sel.Index, sel.UserName)
		h.store.SelectImage(sel.UserName, sel.Index)

	default:
		return reject(env.Event, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event))
	}

	return nil
}

// startRound moves the game to GeneratingImages and renders every
// player's prompt off the hub goroutine. The caller broadcasts the stage
// change; finishRound broadcasts the result.
func (h *Hub) startRound(ctx, roundCtx context.Context) {
	h.generating = true
	users := h.store.BeginRound()

	h.logf("GAMES: Generating images for %d players", len(users))

	go func() {
		results := h.orch.Collect(roundCtx, users)

		select {
		case h.rounds <- results:
		case <-ctx.Done():
		}
	}()
}

func (h *Hub) finishRound(results map[string][]string) {
	h.store.CompleteRound(results)
	h.generating = false

	h.logf("GAMES: Generated images for %d players", len(results))

	h.broadcastSettings()
}

func (h *Hub) reapIdle(now time.Time) {
	if len(h.clients) > 0 || h.generating {
		return
	}
	if now.Sub(h.lastActive) < h.idleTimeout {
		return
	}

	h.logf("GAMES: No activity for %s, resetting game", h.idleTimeout)

	h.store.Reset()
	h.store.ClearImages()
	h.lastActive = now
}

func (h *Hub) broadcastSettings() {
	msg, err := encode(EventSettings, h.store.Snapshot())
	if err != nil {
		h.logf("GAMES: ERROR: encoding settings: %v", err)
		return
	}

	h.logf("GAMES: Pushing settings to %d clients", len(h.clients))

	for c := range h.clients {
		h.trySend(c, msg)
	}
}

func (h *Hub) sendSettings(c *Client) {
	msg, err := encode(EventSettings, h.store.Snapshot())
	if err != nil {
		h.logf("GAMES: ERROR: encoding settings: %v", err)
		return
	}

	h.trySend(c, msg)
}

func (h *Hub) sendError(c *Client, event string, err error) {
	text := err.Error()

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		text = reqErr.Err.Error()
	}

	msg, encErr := encode(EventError, ErrorMessage{Event: event, Message: text})
	if encErr != nil {
		return
	}

	h.trySend(c, msg)
}

// trySend drops a client whose buffer is full rather than stall the room.
func (h *Hub) trySend(c *Client, msg []byte) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		h.logf("GAMES: Dropping slow client %s", c.id)
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(h.clients, c)
	}
}

// ServeConn attaches an upgraded connection to the room and blocks until
// it closes.
func (h *Hub) ServeConn(conn *websocket.Conn) {
	c := newClient(conn)

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	c.readPump(h)
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logf("GAMES: ERROR: reading from %s: %v", c.id, err)
			}
			return
		}

		select {
		case h.inbound <- inboundMessage{client: c, raw: raw}:
		case <-h.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
