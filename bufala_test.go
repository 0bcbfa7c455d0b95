package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBufala(t *testing.T, question bufalaQuestion, names ...string) (*Server, *bufala, []*Client) {
	t.Helper()

	srv := newTestServer(t)
	tv := addTV(srv)

	clients := make([]*Client, 0, len(names))
	for _, name := range names {
		c := addClient(srv)
		joinPlayer(t, srv, c, name)
		clients = append(clients, c)
	}

	srv.handle(tv, clientMessage{Type: "select_game", Game: "bufala"})

	srv.mu.Lock()
	g, ok := srv.active.(*bufala)
	require.True(t, ok)
	g.deck = []bufalaQuestion{question, question, question}
	srv.mu.Unlock()

	srv.handle(clients[0], clientMessage{Type: "start"})

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Equal(t, bufalaWriting, g.phase)

	return srv, g, clients
}

func submitAnswer(t *testing.T, srv *Server, c *Client, answer string) {
	t.Helper()

	srv.handle(c, clientMessage{
		Type: "submit_answer",
		Data: raw(t, bufalaAnswerPayload{Answer: answer}),
	})
}

func submitVote(t *testing.T, srv *Server, c *Client, option string) {
	t.Helper()

	srv.handle(c, clientMessage{
		Type: "vote",
		Data: raw(t, bufalaVotePayload{Option: option}),
	})
}

func TestBufalaRoundScoring(t *testing.T) {
	question := bufalaQuestion{Text: "In a traditional Italian home, which room holds the hearth?", Answer: "CUCINA"}
	srv, g, clients := setupBufala(t, question, "Alice", "Bob", "Carol")

	alice := clientNamed(srv, clients, "Alice")
	bob := clientNamed(srv, clients, "Bob")
	carol := clientNamed(srv, clients, "Carol")

	submitAnswer(t, srv, alice, "forno")
	drain(bob)
	submitAnswer(t, srv, bob, "cucina")

	rejected := false
	for _, m := range drain(bob) {
		if sm, ok := m.(simpleMessage); ok && sm.Type == "bufala_rejected" {
			rejected = true
		}
	}
	assert.True(t, rejected, "a decoy matching the real answer bounces back")

	submitAnswer(t, srv, carol, "salotto")

	srv.mu.Lock()
	require.Equal(t, bufalaWriting, g.phase, "one player still writing")
	assert.Len(t, g.answers, 2)

	// Writing deadline expires with Bob still unsubmitted.
	g.startVotingLocked()
	require.Equal(t, bufalaVoting, g.phase)
	assert.ElementsMatch(t, []string{"CUCINA", "FORNO", "SALOTTO"}, g.options)
	srv.mu.Unlock()

	submitVote(t, srv, alice, "salotto")
	submitVote(t, srv, carol, "forno")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Equal(t, bufalaVoting, g.phase)

	// Voting deadline expires with Bob silent; he is assigned the truth.
	g.startRevealLocked()
	g.timer.stop()

	aliceSeat := g.seatBySession(srv.directory.byConnection(alice.id).SessionID)
	bobSeat := g.seatBySession(srv.directory.byConnection(bob.id).SessionID)
	carolSeat := g.seatBySession(srv.directory.byConnection(carol.id).SessionID)

	assert.Equal(t, "CUCINA", g.votes[bobSeat.sessionID])
	assert.Equal(t, 500, aliceSeat.score, "one vote on Alice's decoy")
	assert.Equal(t, 500, carolSeat.score, "one vote on Carol's decoy")
	assert.Equal(t, 1000, bobSeat.score, "forced truth vote still pays out")

	require.NotEmpty(t, g.revealSteps)
	last := g.revealSteps[len(g.revealSteps)-1]
	assert.True(t, last.Truth, "the real answer is always revealed last")
	assert.Equal(t, "CUCINA", last.Option)
}

func TestBufalaAnswerIdempotent(t *testing.T) {
	question := bufalaQuestion{Text: "Capital of Burkina Faso?", Answer: "OUAGADOUGOU"}
	srv, g, clients := setupBufala(t, question, "Alice", "Bob")

	alice := clientNamed(srv, clients, "Alice")

	submitAnswer(t, srv, alice, "bamako")
	submitAnswer(t, srv, alice, "niamey")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	sessionID := srv.directory.byConnection(alice.id).SessionID
	assert.Equal(t, "BAMAKO", g.answers[sessionID], "only the first submission counts")
	assert.Len(t, g.answers, 1)
}

func TestBufalaVoteRestrictions(t *testing.T) {
	question := bufalaQuestion{Text: "Capital of Burkina Faso?", Answer: "OUAGADOUGOU"}
	srv, g, clients := setupBufala(t, question, "Alice", "Bob")

	alice := clientNamed(srv, clients, "Alice")
	bob := clientNamed(srv, clients, "Bob")

	submitAnswer(t, srv, alice, "bamako")
	submitAnswer(t, srv, bob, "niamey")

	srv.mu.Lock()
	require.Equal(t, bufalaVoting, g.phase, "voting opens once everyone has written")
	srv.mu.Unlock()

	// Voting for your own decoy or for something not on the board is a
	// no-op.
	submitVote(t, srv, alice, "bamako")
	submitVote(t, srv, alice, "timbuktu")

	srv.mu.Lock()
	assert.Empty(t, g.votes)
	srv.mu.Unlock()

	submitVote(t, srv, alice, "niamey")
	submitVote(t, srv, bob, "ouagadougou")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	g.timer.stop()
	assert.Equal(t, bufalaReveal, g.phase, "the last ballot closes the poll")
}

func TestBufalaFinalRoundDoublesPoints(t *testing.T) {
	srv := newTestServer(t)
	g := &bufala{
		srv:      srv,
		phase:    bufalaVoting,
		round:    3,
		rounds:   3,
		question: bufalaQuestion{Text: "q", Answer: "TRUTH"},
		players: []*bufalaPlayer{
			{seat: seat{sessionID: "a", name: "A"}},
			{seat: seat{sessionID: "b", name: "B"}},
		},
		answers: map[string]string{"a": "DECOY"},
		votes:   map[string]string{"b": "DECOY"},
		options: []string{"TRUTH", "DECOY"},
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	g.startRevealLocked()
	g.timer.stop()

	// A never voted, so A is assigned the truth: 2000 for the truth plus
	// 1000 for B's vote on A's decoy, both at the final-round multiplier.
	assert.Equal(t, 3000, g.players[0].score)
	assert.Equal(t, 0, g.players[1].score)
}

func TestBufalaResyncMatchesSubmissionState(t *testing.T) {
	question := bufalaQuestion{Text: "Capital of Burkina Faso?", Answer: "OUAGADOUGOU"}
	srv, g, clients := setupBufala(t, question, "Alice", "Bob", "Carol")

	alice := clientNamed(srv, clients, "Alice")
	bob := clientNamed(srv, clients, "Bob")
	carol := clientNamed(srv, clients, "Carol")

	submitAnswer(t, srv, alice, "bamako")
	submitAnswer(t, srv, bob, "niamey")
	submitAnswer(t, srv, carol, "accra")

	submitVote(t, srv, alice, "niamey")

	srv.mu.Lock()
	require.Equal(t, bufalaVoting, g.phase)
	aliceSession := srv.directory.byConnection(alice.id).SessionID
	bobSession := srv.directory.byConnection(bob.id).SessionID
	wantOptions := g.optionsMessageLocked()
	srv.mu.Unlock()

	// Alice (voted) and Bob (not yet) both drop and reconnect.
	srv.unregister(alice)
	srv.unregister(bob)

	alice2 := addClient(srv)
	drain(alice2)
	srv.handle(alice2, clientMessage{Type: "join", SessionID: aliceSession})
	aliceMsgs := drain(alice2)

	bob2 := addClient(srv)
	drain(bob2)
	srv.handle(bob2, clientMessage{Type: "join", SessionID: bobSession})
	bobMsgs := drain(bob2)

	assert.Equal(t, "wait", lastView(aliceMsgs), "a voter resyncs into the waiting screen")
	assert.Equal(t, "vote", lastView(bobMsgs), "a non-voter resyncs into the ballot")

	optionsSeen := 0
	for _, m := range append(aliceMsgs, bobMsgs...) {
		if om, ok := m.(bufalaOptionsMessage); ok {
			assert.Equal(t, wantOptions, om)
			optionsSeen++
		}
	}
	assert.Equal(t, 2, optionsSeen, "both reconnects re-deliver the ballot options")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "NIAMEY", g.votes[aliceSession], "the recorded vote survives the reconnect")
}

func TestBufalaRemoveLastWriterClosesPhase(t *testing.T) {
	question := bufalaQuestion{Text: "Capital of Burkina Faso?", Answer: "OUAGADOUGOU"}
	srv, g, clients := setupBufala(t, question, "Alice", "Bob", "Carol")

	alice := clientNamed(srv, clients, "Alice")
	bob := clientNamed(srv, clients, "Bob")
	carol := clientNamed(srv, clients, "Carol")

	submitAnswer(t, srv, alice, "bamako")
	submitAnswer(t, srv, bob, "niamey")

	srv.mu.Lock()
	carolSession := srv.directory.byConnection(carol.id).SessionID
	srv.removePlayerLocked(carolSession, true)
	g.timer.stop()
	defer srv.mu.Unlock()

	assert.Equal(t, bufalaVoting, g.phase, "removing the only straggler closes the writing phase")
	assert.Nil(t, g.seatBySession(carolSession))
}

func TestNormalizeAnswer(t *testing.T) {
	assert.Equal(t, "CUCINA", normalizeAnswer("  cucina "))
	assert.Equal(t, "THE BIG ONE", normalizeAnswer("the\tbig   one"))
	assert.Equal(t, "", normalizeAnswer("   "))
}
