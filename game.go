package main

import (
	"encoding/json"
)

// Game is the contract every mini-game implements. Handlers are pure
// no-ops on invalid input: a wrong-phase, unknown-player, or duplicate
// message must never crash or visibly fail, since the realtime channel
// delivers stale and out-of-order messages routinely.
type Game interface {
	// Name returns the tag the game is selected by.
	Name() string

	// Init cancels any pending timer, resets all phase state, seeds
	// the game roster from the given identities, and broadcasts the
	// lobby view.
	Init(roster []*PlayerIdentity)

	// Start leaves the lobby and begins the first working phase.
	Start()

	// HandleAction routes one player-initiated action. The connection
	// is resolved against the current roster; unknown connections are
	// ignored.
	HandleAction(connID, action string, data json.RawMessage)

	// Resync rebinds the requester's connection and reconstructs their
	// correct view purely from current state: a waiting view if they
	// already submitted for this phase, otherwise the exact input view
	// a freshly-arrived client would need.
	Resync(connID string)

	// RemovePlayer expunges a player after a voluntary leave or kick,
	// repairing turn pointers and re-checking termination.
	RemovePlayer(sessionID string)

	// halt cancels the pending timer when the module is abandoned.
	halt()
}

type gameFactory func(srv *Server) Game

var gameFactories = map[string]gameFactory{
	"bufala":    newBufala,
	"cybercity": newCyberCity,
	"imposter":  newImposter,
	"liarsbar":  newLiarsBar,
	"trashtalk": newTrashTalk,
}

// seat is the per-game projection of a durable identity. The conn ID
// is rebound on every resync; all game maps key on the session ID.
type seat struct {
	sessionID string
	connID    string
	name      string
	avatar    string
}

func newSeat(p *PlayerIdentity) seat {
	return seat{
		sessionID: p.SessionID,
		connID:    p.ConnectionID,
		name:      p.Name,
		avatar:    p.Avatar,
	}
}
