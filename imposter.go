// Gamenight Imposter
//
// Everyone is given the same secret word, except one hidden imposter
// who only gets a vague hint. Players talk their way around the word
// trying to smoke out whoever is bluffing, then vote. The crew wins
// if the plurality lands on the imposter; a tie or a miss and the
// imposter walks.

package main

import (
	"encoding/json"
	"math/rand/v2"
)

const (
	imposterLobby      = "LOBBY"
	imposterDiscussion = "DISCUSSION"
	imposterVoting     = "VOTING"
	imposterGameOver   = "GAME_OVER"
)

type imposterPlayer struct {
	seat
}

type imposterGame struct {
	srv   *Server
	timer roundTimer

	phase    string
	players  []*imposterPlayer
	imposter *imposterPlayer
	word     string
	hint     string

	// Votes are tallied by player name rather than session id; names
	// are unique in the session directory, so the tally is stable
	// across reconnects.
	votes map[string]string // voter sessionID -> voted name
}

type imposterRoleMessage struct {
	Type     string `json:"type"` // "imposter_role"
	Imposter bool   `json:"imposter"`
	Word     string `json:"word,omitempty"`
	Hint     string `json:"hint,omitempty"`
}

type imposterStateMessage struct {
	Type       string   `json:"type"` // "imposter_state"
	Phase      string   `json:"phase"`
	Players    []string `json:"players"`
	VotesCast  int      `json:"votes_cast"`
	VotesTotal int      `json:"votes_total"`
}

type imposterResultMessage struct {
	Type      string         `json:"type"` // "imposter_result"
	Imposter  string         `json:"imposter"`
	Word      string         `json:"word"`
	MostVoted string         `json:"most_voted,omitempty"`
	Tie       bool           `json:"tie,omitempty"`
	CrewWins  bool           `json:"crew_wins"`
	Tally     map[string]int `json:"tally"`
}

type imposterVotePayload struct {
	Name string `json:"name"`
}

func newImposter(srv *Server) Game {
	return &imposterGame{srv: srv}
}

func (g *imposterGame) Name() string {
	return "imposter"
}

func (g *imposterGame) halt() {
	g.timer.stop()
}

func (g *imposterGame) Init(roster []*PlayerIdentity) {
	g.timer.stop()

	g.players = make([]*imposterPlayer, 0, len(roster))
	for _, p := range roster {
		g.players = append(g.players, &imposterPlayer{seat: newSeat(p)})
	}

	g.phase = imposterLobby
	g.imposter = nil
	g.word = ""
	g.hint = ""
	g.votes = nil

	g.srv.viewAllLocked("lobby")
	g.srv.broadcastRosterLocked()
}

func (g *imposterGame) Start() {
	if g.phase != imposterLobby || len(g.players) < 3 {
		return
	}

	pair := imposterPairs[rand.IntN(len(imposterPairs))]
	g.word, g.hint = pair.Word, pair.Hint
	g.imposter = g.players[rand.IntN(len(g.players))]
	g.votes = make(map[string]string)

	g.phase = imposterDiscussion

	g.srv.viewAllLocked("discussion")
	g.broadcastStateLocked()
	for _, p := range g.players {
		g.sendRoleLocked(p)
	}

	g.timer.schedule(g.srv, g.srv.cfg.discussTime, func() {
		if g.phase != imposterDiscussion {
			return
		}
		g.openVotingLocked()
	})
}

func (g *imposterGame) HandleAction(connID, action string, data json.RawMessage) {
	switch action {
	case "open_voting":
		// The TV host may cut discussion short; so may any player.
		if connID != g.srv.tvID && g.seatByConn(connID) == nil {
			return
		}
		if g.phase != imposterDiscussion {
			return
		}
		g.openVotingLocked()

	case "vote":
		p := g.seatByConn(connID)
		if p == nil {
			return
		}
		var payload imposterVotePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		g.handleVoteLocked(p, payload.Name)
	}
}

func (g *imposterGame) openVotingLocked() {
	g.phase = imposterVoting

	g.srv.viewAllLocked("vote")
	g.broadcastStateLocked()

	g.timer.schedule(g.srv, g.srv.cfg.voteTimeout, func() {
		if g.phase != imposterVoting {
			return
		}
		g.revealLocked()
	})
}

func (g *imposterGame) handleVoteLocked(p *imposterPlayer, name string) {
	if g.phase != imposterVoting {
		return
	}
	if _, done := g.votes[p.sessionID]; done {
		return
	}

	target := g.seatByName(name)
	if target == nil || target == p {
		return
	}

	g.votes[p.sessionID] = target.name
	g.srv.viewLocked(p.connID, "wait")
	g.broadcastStateLocked()

	if len(g.votes) >= len(g.players) {
		g.revealLocked()
	}
}

func (g *imposterGame) revealLocked() {
	g.timer.stop()

	tally := make(map[string]int)
	for _, name := range g.votes {
		tally[name]++
	}

	most := ""
	top := 0
	tie := false
	for name, count := range tally {
		switch {
		case count > top:
			most, top, tie = name, count, false
		case count == top:
			tie = true
		}
	}

	crewWins := !tie && g.imposter != nil && most == g.imposter.name

	g.phase = imposterGameOver

	result := imposterResultMessage{
		Type:     "imposter_result",
		Word:     g.word,
		Tie:      tie,
		CrewWins: crewWins,
		Tally:    tally,
	}
	if g.imposter != nil {
		result.Imposter = g.imposter.name
	}
	if !tie {
		result.MostVoted = most
	}

	g.srv.viewAllLocked("result")
	g.srv.broadcastLocked(result)
}

func (g *imposterGame) Resync(connID string) {
	identity := g.srv.identityByConn(connID)

	var p *imposterPlayer
	if identity != nil {
		p = g.seatBySession(identity.SessionID)
		if p != nil {
			p.connID = connID
		}
	}

	switch g.phase {
	case imposterLobby:
		g.srv.viewLocked(connID, "lobby")

	case imposterDiscussion:
		g.srv.viewLocked(connID, "discussion")
		g.srv.unicastLocked(connID, g.stateMessageLocked())
		if p != nil {
			g.sendRoleLocked(p)
		}

	case imposterVoting:
		g.srv.unicastLocked(connID, g.stateMessageLocked())
		if p == nil {
			g.srv.viewLocked(connID, "vote")
			return
		}
		g.sendRoleLocked(p)
		if _, done := g.votes[p.sessionID]; done {
			g.srv.viewLocked(connID, "wait")
		} else {
			g.srv.viewLocked(connID, "vote")
		}

	case imposterGameOver:
		g.srv.viewLocked(connID, "result")
		g.revealSnapshotLocked(connID)
	}
}

// revealSnapshotLocked rebuilds the result message from state for a
// late or reconnecting client.
func (g *imposterGame) revealSnapshotLocked(connID string) {
	tally := make(map[string]int)
	for _, name := range g.votes {
		tally[name]++
	}

	most := ""
	top := 0
	tie := false
	for name, count := range tally {
		switch {
		case count > top:
			most, top, tie = name, count, false
		case count == top:
			tie = true
		}
	}

	result := imposterResultMessage{
		Type:     "imposter_result",
		Word:     g.word,
		Tie:      tie,
		CrewWins: !tie && g.imposter != nil && most == g.imposter.name,
		Tally:    tally,
	}
	if g.imposter != nil {
		result.Imposter = g.imposter.name
	}
	if !tie {
		result.MostVoted = most
	}

	g.srv.unicastLocked(connID, result)
}

func (g *imposterGame) RemovePlayer(sessionID string) {
	idx := -1
	for i, p := range g.players {
		if p.sessionID == sessionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	removed := g.players[idx]
	g.players = append(g.players[:idx], g.players[idx+1:]...)
	delete(g.votes, sessionID)

	switch g.phase {
	case imposterDiscussion, imposterVoting:
		if removed == g.imposter {
			// The imposter fled; nothing left to find.
			g.revealLocked()
			return
		}
		g.broadcastStateLocked()
		if g.phase == imposterVoting && len(g.players) > 0 && len(g.votes) >= len(g.players) {
			g.revealLocked()
		}
	}
}

func (g *imposterGame) sendRoleLocked(p *imposterPlayer) {
	msg := imposterRoleMessage{Type: "imposter_role"}
	if p == g.imposter {
		msg.Imposter = true
		msg.Hint = g.hint
	} else {
		msg.Word = g.word
	}
	g.srv.unicastLocked(p.connID, msg)
}

func (g *imposterGame) seatByConn(connID string) *imposterPlayer {
	identity := g.srv.identityByConn(connID)
	if identity == nil {
		return nil
	}
	return g.seatBySession(identity.SessionID)
}

func (g *imposterGame) seatBySession(sessionID string) *imposterPlayer {
	for _, p := range g.players {
		if p.sessionID == sessionID {
			return p
		}
	}
	return nil
}

func (g *imposterGame) seatByName(name string) *imposterPlayer {
	for _, p := range g.players {
		if p.name == name {
			return p
		}
	}
	return nil
}

func (g *imposterGame) stateMessageLocked() imposterStateMessage {
	msg := imposterStateMessage{
		Type:       "imposter_state",
		Phase:      g.phase,
		VotesCast:  len(g.votes),
		VotesTotal: len(g.players),
	}
	for _, p := range g.players {
		msg.Players = append(msg.Players, p.name)
	}
	return msg
}

func (g *imposterGame) broadcastStateLocked() {
	g.srv.broadcastLocked(g.stateMessageLocked())
}
