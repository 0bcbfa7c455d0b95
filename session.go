package main

import (
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// PlayerIdentity is one human, durable across reconnects. The session
// ID is handed to the client once and cached there; the connection ID
// is only a delivery address and changes on every reconnect.
type PlayerIdentity struct {
	SessionID    string
	ConnectionID string
	Name         string
	Avatar       string
	Connected    bool
}

var (
	errNameTaken      = errors.New("name already taken")
	errSessionExpired = errors.New("session no longer exists")
)

// SessionDirectory maps durable identities to live connections. It is
// not safe for concurrent use on its own; every method assumes the
// caller holds the server lock.
type SessionDirectory struct {
	identities map[string]*PlayerIdentity
}

func newSessionDirectory() *SessionDirectory {
	return &SessionDirectory{
		identities: make(map[string]*PlayerIdentity),
	}
}

func (d *SessionDirectory) bySession(sessionID string) *PlayerIdentity {
	return d.identities[sessionID]
}

func (d *SessionDirectory) byConnection(connID string) *PlayerIdentity {
	if connID == "" {
		return nil
	}
	for _, p := range d.identities {
		if p.ConnectionID == connID {
			return p
		}
	}
	return nil
}

func (d *SessionDirectory) byName(name string) *PlayerIdentity {
	for _, p := range d.identities {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// join handles both paths of the login protocol: a session ID that
// resolves rebinds the existing identity to the new connection, and a
// non-empty name registers a new identity, provided it does not
// collide case-insensitively with any registered player, connected or
// not.
func (d *SessionDirectory) join(name, avatar, sessionID, connID string) (*PlayerIdentity, error) {
	if p := d.bySession(sessionID); p != nil {
		p.ConnectionID = connID
		p.Connected = true
		return p, nil
	}

	// A session ID that failed to resolve is stale (server restart,
	// kick). Without a name there is nothing to register, so the
	// caller has to send the client back through login.
	if name == "" {
		return nil, errSessionExpired
	}

	if d.byName(name) != nil {
		return nil, errNameTaken
	}

	p := &PlayerIdentity{
		SessionID:    uuid.NewString(),
		ConnectionID: connID,
		Name:         name,
		Avatar:       avatar,
		Connected:    true,
	}
	d.identities[p.SessionID] = p

	return p, nil
}

// disconnect marks the matching identity as offline. The identity is
// kept so the player can reconnect with their cached session ID.
func (d *SessionDirectory) disconnect(connID string) *PlayerIdentity {
	p := d.byConnection(connID)
	if p == nil {
		return nil
	}
	p.Connected = false
	p.ConnectionID = ""
	return p
}

// remove deletes the identity entirely (voluntary leave or kick).
func (d *SessionDirectory) remove(sessionID string) *PlayerIdentity {
	p := d.identities[sessionID]
	if p == nil {
		return nil
	}
	delete(d.identities, sessionID)
	return p
}

// reset empties the directory and returns the removed identities.
func (d *SessionDirectory) reset() []*PlayerIdentity {
	removed := d.roster()
	d.identities = make(map[string]*PlayerIdentity)
	return removed
}

// roster returns all identities sorted by name, for stable broadcasts.
func (d *SessionDirectory) roster() []*PlayerIdentity {
	players := make([]*PlayerIdentity, 0, len(d.identities))
	for _, p := range d.identities {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		return strings.ToLower(players[i].Name) < strings.ToLower(players[j].Name)
	})
	return players
}
