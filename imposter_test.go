package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupImposter(t *testing.T, names ...string) (*Server, *imposterGame, *Client, []*Client) {
	t.Helper()

	srv := newTestServer(t)
	tv := addTV(srv)

	clients := make([]*Client, 0, len(names))
	for _, name := range names {
		c := addClient(srv)
		joinPlayer(t, srv, c, name)
		clients = append(clients, c)
	}

	srv.handle(tv, clientMessage{Type: "select_game", Game: "imposter"})
	srv.handle(clients[0], clientMessage{Type: "start"})

	srv.mu.Lock()
	defer srv.mu.Unlock()

	g, ok := srv.active.(*imposterGame)
	require.True(t, ok)
	require.Equal(t, imposterDiscussion, g.phase)

	return srv, g, tv, clients
}

func voteImposter(t *testing.T, srv *Server, c *Client, name string) {
	t.Helper()

	srv.handle(c, clientMessage{
		Type: "vote",
		Data: raw(t, imposterVotePayload{Name: name}),
	})
}

func TestImposterRoleDistribution(t *testing.T) {
	srv, g, _, clients := setupImposter(t, "Alice", "Bob", "Carol")

	srv.mu.Lock()
	require.NotNil(t, g.imposter)
	require.NotEmpty(t, g.word)
	require.NotEmpty(t, g.hint)
	imposterName := g.imposter.name
	word := g.word
	hint := g.hint
	srv.mu.Unlock()

	imposters := 0
	for _, c := range clients {
		srv.mu.Lock()
		name := srv.directory.byConnection(c.id).Name
		srv.mu.Unlock()

		var role *imposterRoleMessage
		for _, m := range drain(c) {
			if rm, ok := m.(imposterRoleMessage); ok {
				role = &rm
			}
		}
		require.NotNil(t, role, "%s never received a role", name)

		if role.Imposter {
			imposters++
			assert.Equal(t, imposterName, name)
			assert.Equal(t, hint, role.Hint)
			assert.Empty(t, role.Word, "the imposter must not see the word")
		} else {
			assert.Equal(t, word, role.Word)
			assert.Empty(t, role.Hint)
		}
	}
	assert.Equal(t, 1, imposters)
}

func TestImposterCrewWinsOnPlurality(t *testing.T) {
	srv, g, tv, clients := setupImposter(t, "Alice", "Bob", "Carol")

	srv.mu.Lock()
	g.imposter = g.seatByName("Alice")
	require.NotNil(t, g.imposter)
	srv.mu.Unlock()

	srv.handle(tv, clientMessage{Type: "open_voting"})

	srv.mu.Lock()
	require.Equal(t, imposterVoting, g.phase)
	srv.mu.Unlock()
	drain(tv)

	voteImposter(t, srv, clientNamed(srv, clients, "Alice"), "Bob")
	voteImposter(t, srv, clientNamed(srv, clients, "Bob"), "Alice")
	voteImposter(t, srv, clientNamed(srv, clients, "Carol"), "Alice")

	srv.mu.Lock()
	assert.Equal(t, imposterGameOver, g.phase, "the last ballot triggers the reveal")
	srv.mu.Unlock()

	var result *imposterResultMessage
	for _, m := range drain(tv) {
		if rm, ok := m.(imposterResultMessage); ok {
			result = &rm
		}
	}
	require.NotNil(t, result)
	assert.True(t, result.CrewWins)
	assert.False(t, result.Tie)
	assert.Equal(t, "Alice", result.Imposter)
	assert.Equal(t, "Alice", result.MostVoted)
	assert.Equal(t, map[string]int{"Alice": 2, "Bob": 1}, result.Tally)
}

func TestImposterTieLetsImposterWalk(t *testing.T) {
	srv, g, tv, clients := setupImposter(t, "Alice", "Bob", "Carol", "Dave")

	srv.mu.Lock()
	g.imposter = g.seatByName("Alice")
	srv.mu.Unlock()

	srv.handle(tv, clientMessage{Type: "open_voting"})
	drain(tv)

	voteImposter(t, srv, clientNamed(srv, clients, "Alice"), "Bob")
	voteImposter(t, srv, clientNamed(srv, clients, "Bob"), "Alice")
	voteImposter(t, srv, clientNamed(srv, clients, "Carol"), "Bob")
	voteImposter(t, srv, clientNamed(srv, clients, "Dave"), "Alice")

	var result *imposterResultMessage
	for _, m := range drain(tv) {
		if rm, ok := m.(imposterResultMessage); ok {
			result = &rm
		}
	}
	require.NotNil(t, result)
	assert.True(t, result.Tie)
	assert.False(t, result.CrewWins, "a split vote never convicts")
	assert.Empty(t, result.MostVoted)
}

func TestImposterVoteValidation(t *testing.T) {
	srv, g, tv, clients := setupImposter(t, "Alice", "Bob", "Carol")

	alice := clientNamed(srv, clients, "Alice")

	// No ballots before voting opens.
	voteImposter(t, srv, alice, "Bob")

	srv.mu.Lock()
	assert.Empty(t, g.votes)
	srv.mu.Unlock()

	srv.handle(tv, clientMessage{Type: "open_voting"})

	// Self-votes and unknown names are no-ops; the first valid ballot
	// sticks and later ones are ignored.
	voteImposter(t, srv, alice, "Alice")
	voteImposter(t, srv, alice, "Zork")
	voteImposter(t, srv, alice, "Bob")
	voteImposter(t, srv, alice, "Carol")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	aliceSession := srv.directory.byConnection(alice.id).SessionID
	assert.Equal(t, "Bob", g.votes[aliceSession])
	assert.Len(t, g.votes, 1)
}

func TestImposterPlayerMayOpenVoting(t *testing.T) {
	srv, g, _, clients := setupImposter(t, "Alice", "Bob", "Carol")

	srv.handle(clientNamed(srv, clients, "Bob"), clientMessage{Type: "open_voting"})

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, imposterVoting, g.phase)
}

func TestImposterVoteSurvivesReconnect(t *testing.T) {
	srv, g, tv, clients := setupImposter(t, "Alice", "Bob", "Carol")

	srv.handle(tv, clientMessage{Type: "open_voting"})

	alice := clientNamed(srv, clients, "Alice")
	voteImposter(t, srv, alice, "Bob")

	srv.mu.Lock()
	aliceSession := srv.directory.byConnection(alice.id).SessionID
	srv.mu.Unlock()

	srv.unregister(alice)

	alice2 := addClient(srv)
	drain(alice2)
	srv.handle(alice2, clientMessage{Type: "join", SessionID: aliceSession})

	msgs := drain(alice2)
	assert.Equal(t, "wait", lastView(msgs), "a voter resyncs into the waiting screen")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "Bob", g.votes[aliceSession])
}

func TestImposterLeavingImposterEndsGame(t *testing.T) {
	srv, g, _, _ := setupImposter(t, "Alice", "Bob", "Carol")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.removePlayerLocked(g.imposter.sessionID, false)

	assert.Equal(t, imposterGameOver, g.phase)
}
