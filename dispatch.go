package main

import (
	"encoding/json"
	"errors"
	"sync"
)

// Messages coming from clients. Per-game action payloads ride in Data
// and are decoded by the active game module.
type clientMessage struct {
	Type      string          `json:"type"`                 // "join", "leave", "register_tv", "select_game", "kick", "reset", "roster", "sync", "start", or a game action
	Name      string          `json:"name,omitempty"`       // join
	Avatar    string          `json:"avatar,omitempty"`     // join
	SessionID string          `json:"session_id,omitempty"` // join (reconnect)
	Game      string          `json:"game,omitempty"`       // select_game
	Target    string          `json:"target,omitempty"`     // kick (session id)
	Data      json.RawMessage `json:"data,omitempty"`       // game action payload
}

type playerInfo struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Connected bool   `json:"connected"`
}

// rosterMessage is broadcast on every session directory mutation.
type rosterMessage struct {
	Type    string       `json:"type"` // "roster"
	Game    string       `json:"game,omitempty"`
	Players []playerInfo `json:"players"`
}

// viewMessage tells a client which screen to render. All data needed
// to populate a view is sent separately and is always re-derivable
// via sync.
type viewMessage struct {
	Type string `json:"type"` // "view"
	View string `json:"view"`
}

type loginOkMessage struct {
	Type   string     `json:"type"` // "login_ok"
	Player playerInfo `json:"player"`
}

type loginRejectedMessage struct {
	Type   string `json:"type"` // "login_rejected"
	Reason string `json:"reason"`
}

// SimpleMessage is for generic notifications ("force_login", etc.)
type simpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// Server owns the session directory, the live connections, and the
// single active game module. Every inbound message and every timer
// callback runs under mu, so game modules never see concurrent
// mutation.
type Server struct {
	cfg *Config

	mu        sync.Mutex
	clients   map[string]*Client
	directory *SessionDirectory
	tvID      string

	active     Game
	activeName string
}

func newServer(cfg *Config) *Server {
	return &Server{
		cfg:       cfg,
		clients:   make(map[string]*Client),
		directory: newSessionDirectory(),
	}
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c.id] = c
	s.unicastLocked(c.id, s.rosterMessageLocked())
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c.id]; ok {
		delete(s.clients, c.id)
		close(c.send)
	}

	if s.tvID == c.id {
		s.tvID = ""
	}

	if p := s.directory.disconnect(c.id); p != nil {
		logf(s.cfg, "SESSION: Player %q disconnected", p.Name)
		s.broadcastRosterLocked()
	}
}

func (s *Server) handle(c *Client, msg clientMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Type {
	case "join":
		s.handleJoinLocked(c, msg)

	case "leave":
		s.handleLeaveLocked(c)

	case "register_tv":
		s.tvID = c.id
		s.unicastLocked(c.id, s.rosterMessageLocked())
		if s.active != nil {
			s.active.Resync(c.id)
		} else {
			s.viewLocked(c.id, "menu")
		}

	case "select_game":
		if c.id != s.tvID {
			return
		}
		s.startGameLocked(msg.Game)

	case "kick":
		if c.id != s.tvID {
			return
		}
		s.removePlayerLocked(msg.Target, true)

	case "reset":
		if c.id != s.tvID {
			return
		}
		s.resetSessionLocked()

	case "roster":
		s.unicastLocked(c.id, s.rosterMessageLocked())

	case "sync":
		s.resyncLocked(c)

	case "start":
		if s.active == nil {
			return
		}
		if c.id != s.tvID && s.directory.byConnection(c.id) == nil {
			return
		}
		s.active.Start()

	default:
		if s.active != nil {
			s.active.HandleAction(c.id, msg.Type, msg.Data)
		}
	}
}

func (s *Server) handleJoinLocked(c *Client, msg clientMessage) {
	if p := s.directory.byConnection(c.id); p != nil {
		// Connection already bound; repeat joins are idempotent.
		s.unicastLocked(c.id, loginOkMessage{Type: "login_ok", Player: info(p)})
		return
	}

	if msg.Name == "" && msg.SessionID == "" {
		s.unicastLocked(c.id, loginRejectedMessage{
			Type:   "login_rejected",
			Reason: "A name is required.",
		})
		return
	}

	p, err := s.directory.join(msg.Name, msg.Avatar, msg.SessionID, c.id)
	switch {
	case errors.Is(err, errSessionExpired):
		// Stale session ID and no name to register under; make the
		// client drop its cached session and show login again.
		s.unicastLocked(c.id, simpleMessage{
			Type:    "force_login",
			Message: "Your session has expired. Please log in again.",
		})
		return
	case err != nil:
		s.unicastLocked(c.id, loginRejectedMessage{
			Type:   "login_rejected",
			Reason: "That name is already taken. Please choose a different name.",
		})
		return
	}

	logf(s.cfg, "SESSION: Player %q joined", p.Name)

	s.unicastLocked(c.id, loginOkMessage{Type: "login_ok", Player: info(p)})
	s.broadcastRosterLocked()

	if s.active != nil {
		s.active.Resync(c.id)
	} else {
		s.viewLocked(c.id, "lobby")
	}
}

func (s *Server) handleLeaveLocked(c *Client) {
	p := s.directory.byConnection(c.id)
	if p == nil {
		return
	}
	s.removePlayerLocked(p.SessionID, false)
	s.viewLocked(c.id, "login")
}

// removePlayerLocked expunges an identity from the directory and from
// the active game, forcing the target back to login when kicked.
func (s *Server) removePlayerLocked(sessionID string, kicked bool) {
	p := s.directory.remove(sessionID)
	if p == nil {
		return
	}

	logf(s.cfg, "SESSION: Player %q removed", p.Name)

	if kicked && p.ConnectionID != "" {
		s.unicastLocked(p.ConnectionID, simpleMessage{
			Type:    "force_login",
			Message: "You have been removed by the host.",
		})
	}

	if s.active != nil {
		s.active.RemovePlayer(sessionID)
	}

	s.broadcastRosterLocked()
}

func (s *Server) resetSessionLocked() {
	removed := s.directory.reset()

	if s.active != nil {
		s.active.halt()
		s.active = nil
		s.activeName = ""
	}

	for _, p := range removed {
		if p.ConnectionID != "" {
			s.unicastLocked(p.ConnectionID, simpleMessage{
				Type:    "force_login",
				Message: "The session has been reset by the host.",
			})
		}
	}

	s.broadcastRosterLocked()
	if s.tvID != "" {
		s.viewLocked(s.tvID, "menu")
	}

	logf(s.cfg, "SESSION: Reset")
}

// startGameLocked swaps the active game module. The previous module's
// pending timer dies with it; the new one is seeded from the current
// roster.
func (s *Server) startGameLocked(name string) {
	factory, ok := gameFactories[name]
	if !ok {
		return
	}

	if s.active != nil {
		s.active.halt()
	}

	s.active = factory(s)
	s.activeName = name
	s.active.Init(s.directory.roster())

	logf(s.cfg, "GAMES: Selected %s", name)
}

func (s *Server) resyncLocked(c *Client) {
	if s.active != nil {
		s.active.Resync(c.id)
		return
	}

	if c.id == s.tvID {
		s.viewLocked(c.id, "menu")
	} else if s.directory.byConnection(c.id) != nil {
		s.viewLocked(c.id, "lobby")
	} else {
		s.viewLocked(c.id, "login")
	}
}

// identityByConn resolves a connection to its durable identity, or nil
// for unknown/stale connections. Caller holds the server lock.
func (s *Server) identityByConn(connID string) *PlayerIdentity {
	return s.directory.byConnection(connID)
}

func info(p *PlayerIdentity) playerInfo {
	return playerInfo{
		SessionID: p.SessionID,
		Name:      p.Name,
		Avatar:    p.Avatar,
		Connected: p.Connected,
	}
}

func (s *Server) rosterMessageLocked() rosterMessage {
	roster := s.directory.roster()
	players := make([]playerInfo, 0, len(roster))
	for _, p := range roster {
		players = append(players, info(p))
	}
	return rosterMessage{Type: "roster", Game: s.activeName, Players: players}
}

func (s *Server) broadcastRosterLocked() {
	s.broadcastLocked(s.rosterMessageLocked())
}

func (s *Server) broadcastLocked(msg any) {
	for id, client := range s.clients {
		select {
		case client.send <- msg:
		default:
			delete(s.clients, id)
			close(client.send)
		}
	}
}

func (s *Server) unicastLocked(connID string, msg any) {
	client, ok := s.clients[connID]
	if !ok {
		return
	}

	select {
	case client.send <- msg:
	default:
		delete(s.clients, connID)
		close(client.send)
	}
}

func (s *Server) viewLocked(connID, view string) {
	s.unicastLocked(connID, viewMessage{Type: "view", View: view})
}

func (s *Server) viewAllLocked(view string) {
	s.broadcastLocked(viewMessage{Type: "view", View: view})
}
