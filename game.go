// Quizbox game surface
//
// One game ID is one table's shared screen. Players are set up once,
// then take turns: the active player picks a category, the server
// draws a random question from the bank (avoiding repeats within the
// session), and the table answers on the shared screen. A wrong
// answer passes the turn and clears the category; a right answer
// keeps both, and the player asks for the next question.
//
// Features:
// - WebSockets per game ID: /play/:gameid and /play/:gameid/ws
// - Session state held server-side, owned by a single hub goroutine
// - Choices shuffled once per presentation, so re-renders can't leak
//   the answer by volatility
// - Per-category asked-question tracking with repetition allowed only
//   once a category is exhausted
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current game, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string   `json:"type"`               // "init_session", "pick_category", "next_question", "answer", "next_player", "reset_session"
	Names    []string `json:"names,omitempty"`    // init_session
	Category string   `json:"category,omitempty"` // pick_category
	Index    *int     `json:"index,omitempty"`    // answer
}

// SessionStateMessage mirrors the whole session to every client.
type SessionStateMessage struct {
	Type               string           `json:"type"` // "session_state"
	Players            []SessionPlayer  `json:"players"`
	CurrentPlayerIndex int              `json:"current_player_index"`
	CurrentPlayer      string           `json:"current_player,omitempty"`
	CurrentCategory    Category         `json:"current_category,omitempty"`
	CategoryLabel      string           `json:"category_label,omitempty"`
	AskedCounts        map[Category]int `json:"asked_counts"`
	StartedAt          *time.Time       `json:"started_at,omitempty"`
	Categories         []CategoryChoice `json:"categories"`
}

// CategoryChoice is one pickable category tile.
type CategoryChoice struct {
	ID    Category `json:"id"`
	Label string   `json:"label"`
	Color string   `json:"color"`
}

// QuestionMessage presents one question with display-shuffled
// choices. The answer index is withheld until the table answers.
type QuestionMessage struct {
	Type     string   `json:"type"` // "question"
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Prompt   string   `json:"prompt"`
	Choices  []string `json:"choices"`
}

// AnswerResultMessage reveals the outcome of an answer.
type AnswerResultMessage struct {
	Type        string `json:"type"` // "answer_result"
	Correct     bool   `json:"correct"`
	PickedIndex int    `json:"picked_index"`
	AnswerIndex int    `json:"answer_index"`
	Player      string `json:"player,omitempty"`
	Message     string `json:"message"`
}

// ErrorMessage is sent to a single client.
type ErrorMessage struct {
	Type    string `json:"type"` // "error_msg"
	Message string `json:"message"`
}

type Client struct {
	conn *websocket.Conn
	send chan any
}

type clientAction struct {
	client *Client
	msg    ClientMessage
}

// presented is the question currently on screen, with its cached
// shuffle. Shuffling happens exactly once per presentation.
type presented struct {
	question    Question
	choices     []string
	answerIndex int
}

type Hub struct {
	id      string
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	actions  chan clientAction

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time

	session *Session
	current *presented

	store QuestionStore
	rng   randSource
}

func newHub(gameID string, store QuestionStore, rng randSource) *Hub {
	now := time.Now()
	return &Hub{
		id:         gameID,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		actions:    make(chan clientAction),
		createdAt:  now,
		lastActive: now,
		session:    NewSession(),
		store:      store,
		rng:        rng,
	}
}

// run is the single writer for this game's session state. Every
// mutation happens here, so clients observe transitions atomically.
func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = time.Now()
			h.clients[c] = true
			h.mu.Unlock()

			c.send <- h.stateMessage()
			if cur := h.current; cur != nil {
				c.send <- QuestionMessage{
					Type:     "question",
					ID:       cur.question.ID,
					Category: cur.question.Category,
					Prompt:   cur.question.Prompt,
					Choices:  cur.choices,
				}
			}

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case action := <-h.actions:
			h.handleAction(cfg, action)
		}
	}
}

func (h *Hub) handleAction(cfg *Config, action clientAction) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	c := action.client
	msg := action.msg

	switch msg.Type {
	case "init_session":
		h.session.Init(msg.Names)
		h.current = nil
		if player, ok := h.session.CurrentPlayer(); ok {
			logf(cfg, "GAMES: Session started in %s with %d players, %s first", h.id, len(h.session.Players), player.DisplayName())
		} else {
			logf(cfg, "GAMES: Session started in %s with no players", h.id)
		}
		h.broadcastState()

	case "pick_category":
		category, err := ParseCategory(msg.Category)
		if err != nil && msg.Category != "" {
			h.sendTo(c, ErrorMessage{Type: "error_msg", Message: err.Error()})
			return
		}
		h.session.SetCategory(category)
		h.current = nil
		h.broadcastState()

	case "next_question":
		h.serveQuestion(cfg, c)

	case "answer":
		h.handleAnswer(cfg, c, msg)

	case "next_player":
		h.session.NextPlayer()
		h.current = nil
		h.broadcastState()

	case "reset_session":
		h.session.Reset()
		h.current = nil
		logf(cfg, "GAMES: Session reset in %s", h.id)
		h.broadcastState()

	default:
		// ignore unknown types
	}
}

func (h *Hub) serveQuestion(cfg *Config, c *Client) {
	category := h.session.CurrentCategory
	if category == "" {
		h.sendTo(c, ErrorMessage{Type: "error_msg", Message: "Pick a category first."})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	asked := h.session.Asked(category)

	candidates, err := h.store.FetchByCategory(ctx, category, asked)
	if err != nil {
		logf(cfg, "GAMES: Question fetch failed in %s: %v", h.id, err)
		h.sendTo(c, ErrorMessage{Type: "error_msg", Message: "Could not load a question. Try again."})
		return
	}

	question, ok := pickRandomQuestion(candidates, category, asked, h.rng)
	if !ok {
		h.sendTo(c, ErrorMessage{Type: "error_msg", Message: "No questions in this category yet."})
		return
	}

	choices, answerIndex := shuffleChoices(question.Choices, question.AnswerIndex, h.rng)
	h.current = &presented{
		question:    question,
		choices:     choices,
		answerIndex: answerIndex,
	}

	h.broadcast(QuestionMessage{
		Type:     "question",
		ID:       question.ID,
		Category: question.Category,
		Prompt:   question.Prompt,
		Choices:  choices,
	})
}

func (h *Hub) handleAnswer(cfg *Config, c *Client, msg ClientMessage) {
	cur := h.current
	if cur == nil || msg.Index == nil {
		return
	}
	picked := *msg.Index
	if picked < 0 || picked >= len(cur.choices) {
		h.sendTo(c, ErrorMessage{Type: "error_msg", Message: "Answer out of range."})
		return
	}

	correct := picked == cur.answerIndex

	h.session.AddAsked(cur.question.Category, cur.question.ID)
	h.current = nil

	playerName := ""
	if player, ok := h.session.CurrentPlayer(); ok {
		playerName = player.DisplayName()
	}

	var text string
	if correct {
		text = "Correct! Same player, same category."
		logf(cfg, "GAMES: %q answered correctly in %s", playerName, h.id)
	} else {
		text = "Wrong answer, next player picks a category."
		logf(cfg, "GAMES: %q answered incorrectly in %s", playerName, h.id)
		h.session.NextPlayer()
	}

	h.broadcast(AnswerResultMessage{
		Type:        "answer_result",
		Correct:     correct,
		PickedIndex: picked,
		AnswerIndex: cur.answerIndex,
		Player:      playerName,
		Message:     text,
	})
	h.broadcastState()
}

// stateMessage assumes h.mu is held (or the hub goroutine owns the state).
func (h *Hub) stateMessage() SessionStateMessage {
	s := h.session

	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = len(s.AskedByCategory[c])
	}

	choices := make([]CategoryChoice, 0, len(Categories))
	for _, c := range Categories {
		info := c.Info()
		choices = append(choices, CategoryChoice{ID: c, Label: info.Label, Color: info.Color})
	}

	msg := SessionStateMessage{
		Type:               "session_state",
		Players:            s.Players,
		CurrentPlayerIndex: s.CurrentPlayerIndex,
		CurrentCategory:    s.CurrentCategory,
		AskedCounts:        counts,
		Categories:         choices,
	}

	if player, ok := s.CurrentPlayer(); ok {
		msg.CurrentPlayer = player.DisplayName()
	}
	if s.CurrentCategory != "" {
		msg.CategoryLabel = s.CurrentCategory.Info().Label
	}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		msg.StartedAt = &started
	}

	return msg
}

func (h *Hub) broadcastState() {
	h.broadcast(h.stateMessage())
}

func (h *Hub) broadcast(msg any) {
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *Hub) sendTo(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

// closeAll disconnects all clients of this hub (used by reaper).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameManager holds a set of hubs keyed by game ID, so each
// /play/:gameid is its own isolated table.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	store       QuestionStore
	idleTimeout time.Duration
}

func newGameManager(store QuestionStore, idleTimeout time.Duration) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		store:       store,
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(cfg *Config, gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gameID, gm.store, defaultRand())
	gm.hubs[gameID] = hub
	go hub.run(cfg)
	return hub
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-gm.idleTimeout)

		gm.mu.Lock()
		for id, hub := range gm.hubs {
			hub.mu.RLock()
			last := hub.lastActive
			hub.mu.RUnlock()

			if last.Before(cutoff) {
				delete(gm.hubs, id)
				go hub.closeAll()
			}
		}
		gm.mu.Unlock()
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		hub := gm.getHub(cfg, gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "GAMES: Upgrade error in %s: %v", gameID, err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 8),
		}

		hub.register <- client

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		h.actions <- clientAction{
			client: c,
			msg:    msg,
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /play/:gameid/qr; strip trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// redirectNewGame handles GET /play by generating a new random game ID
// (with server-side collision detection) and redirecting to /play/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerGame sets up routes so that:
//   - $path             → redirects to new random game (8-char ID)
//   - $path/:gameid     → HTML client
//   - $path/:gameid/ws  → WebSocket for that game
//   - $path/:gameid/qr  → PNG QR code for that game URL
func registerGame(cfg *Config, path string, store QuestionStore, mux *httprouter.Router) {
	gm := newGameManager(store, cfg.sessionTimeout)

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, cfg.prefix+path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", serveGamePage(cfg))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)
}
