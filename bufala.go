// Gamenight Bufala
//
// A fool-your-friends trivia game. Every round shows an obscure
// question; each player writes a plausible fake answer. The fakes and
// the real answer are then shuffled together and everyone votes for
// the one they believe. You score for every player fooled by your
// fake, and for finding the truth yourself. Points double on the
// final round.

package main

import (
	"encoding/json"
	"math/rand/v2"
	"sort"
	"strings"
)

const (
	bufalaLobby       = "LOBBY"
	bufalaWriting     = "WRITING"
	bufalaVoting      = "VOTING"
	bufalaReveal      = "REVEAL"
	bufalaLeaderboard = "LEADERBOARD"
	bufalaGameOver    = "GAME_OVER"
)

const (
	bufalaDecoyPoints = 500
	bufalaTruthPoints = 1000
)

type bufalaPlayer struct {
	seat
	score int
}

type bufala struct {
	srv   *Server
	timer roundTimer

	phase   string
	players []*bufalaPlayer
	round   int
	rounds  int
	deck    []bufalaQuestion

	question bufalaQuestion
	answers  map[string]string // sessionID -> normalized decoy
	votes    map[string]string // sessionID -> chosen option
	options  []string

	revealSteps []bufalaRevealStep
	revealIdx   int
}

type bufalaQuestionMessage struct {
	Type   string `json:"type"` // "bufala_question"
	Round  int    `json:"round"`
	Rounds int    `json:"rounds"`
	Text   string `json:"text"`
}

type bufalaProgressMessage struct {
	Type      string `json:"type"` // "bufala_progress"
	Phase     string `json:"phase"`
	Submitted int    `json:"submitted"`
	Total     int    `json:"total"`
}

type bufalaOptionsMessage struct {
	Type    string   `json:"type"` // "bufala_options"
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type bufalaRevealStep struct {
	Option  string   `json:"option"`
	Authors []string `json:"authors,omitempty"`
	Voters  []string `json:"voters,omitempty"`
	Truth   bool     `json:"truth"`
}

type bufalaRevealMessage struct {
	Type  string           `json:"type"` // "bufala_reveal"
	Step  int              `json:"step"`
	Steps int              `json:"steps"`
	Data  bufalaRevealStep `json:"data"`
}

type scoreEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type bufalaBoardMessage struct {
	Type   string       `json:"type"` // "bufala_board"
	Round  int          `json:"round"`
	Rounds int          `json:"rounds"`
	Final  bool         `json:"final"`
	Scores []scoreEntry `json:"scores"`
}

type bufalaAnswerPayload struct {
	Answer string `json:"answer"`
}

type bufalaVotePayload struct {
	Option string `json:"option"`
}

func newBufala(srv *Server) Game {
	return &bufala{srv: srv}
}

func (g *bufala) Name() string {
	return "bufala"
}

func (g *bufala) halt() {
	g.timer.stop()
}

func (g *bufala) Init(roster []*PlayerIdentity) {
	g.timer.stop()

	g.players = make([]*bufalaPlayer, 0, len(roster))
	for _, p := range roster {
		g.players = append(g.players, &bufalaPlayer{seat: newSeat(p)})
	}

	g.phase = bufalaLobby
	g.round = 0
	g.rounds = g.srv.cfg.rounds

	g.deck = make([]bufalaQuestion, len(bufalaQuestions))
	copy(g.deck, bufalaQuestions)
	rand.Shuffle(len(g.deck), func(i, j int) {
		g.deck[i], g.deck[j] = g.deck[j], g.deck[i]
	})
	if g.rounds > len(g.deck) {
		g.rounds = len(g.deck)
	}

	g.answers = nil
	g.votes = nil
	g.options = nil
	g.revealSteps = nil

	g.srv.viewAllLocked("lobby")
	g.srv.broadcastRosterLocked()
}

func (g *bufala) Start() {
	if g.phase != bufalaLobby || len(g.players) < 2 {
		return
	}
	g.startRoundLocked()
}

func (g *bufala) startRoundLocked() {
	g.round++
	g.question = g.deck[g.round-1]
	g.answers = make(map[string]string)
	g.votes = make(map[string]string)
	g.options = nil
	g.revealSteps = nil
	g.revealIdx = 0

	g.phase = bufalaWriting

	g.srv.viewAllLocked("write")
	g.srv.broadcastLocked(g.questionMessageLocked())
	g.broadcastProgressLocked()

	g.timer.schedule(g.srv, g.srv.cfg.writeTimeout, func() {
		if g.phase != bufalaWriting {
			return
		}
		g.startVotingLocked()
	})
}

func (g *bufala) HandleAction(connID, action string, data json.RawMessage) {
	p := g.seatByConn(connID)
	if p == nil {
		return
	}

	switch action {
	case "submit_answer":
		var payload bufalaAnswerPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		g.handleAnswerLocked(p, payload.Answer)

	case "vote":
		var payload bufalaVotePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		g.handleVoteLocked(p, payload.Option)
	}
}

func (g *bufala) handleAnswerLocked(p *bufalaPlayer, raw string) {
	if g.phase != bufalaWriting {
		return
	}
	if _, done := g.answers[p.sessionID]; done {
		return
	}

	answer := normalizeAnswer(raw)
	if answer == "" {
		return
	}

	// An answer matching or nearly containing the real one would give
	// the truth away; bounce it back for a rewrite.
	truth := normalizeAnswer(g.question.Answer)
	if strings.Contains(answer, truth) || strings.Contains(truth, answer) {
		g.srv.unicastLocked(p.connID, simpleMessage{
			Type:    "bufala_rejected",
			Message: "Too close to the real answer. Try something sneakier.",
		})
		return
	}

	g.answers[p.sessionID] = answer
	g.broadcastProgressLocked()

	if len(g.answers) >= len(g.players) {
		g.startVotingLocked()
	}
}

func (g *bufala) startVotingLocked() {
	truth := normalizeAnswer(g.question.Answer)

	seen := map[string]bool{truth: true}
	g.options = []string{truth}
	for _, answer := range g.answers {
		if !seen[answer] {
			seen[answer] = true
			g.options = append(g.options, answer)
		}
	}
	rand.Shuffle(len(g.options), func(i, j int) {
		g.options[i], g.options[j] = g.options[j], g.options[i]
	})

	g.phase = bufalaVoting

	g.srv.viewAllLocked("vote")
	g.srv.broadcastLocked(g.optionsMessageLocked())
	g.broadcastProgressLocked()

	g.timer.schedule(g.srv, g.srv.cfg.voteTimeout, func() {
		if g.phase != bufalaVoting {
			return
		}
		g.startRevealLocked()
	})
}

func (g *bufala) handleVoteLocked(p *bufalaPlayer, option string) {
	if g.phase != bufalaVoting {
		return
	}
	if _, done := g.votes[p.sessionID]; done {
		return
	}

	option = normalizeAnswer(option)
	if !g.validOption(option) || option == g.answers[p.sessionID] {
		return
	}

	g.votes[p.sessionID] = option
	g.srv.viewLocked(p.connID, "wait")
	g.broadcastProgressLocked()

	if len(g.votes) >= len(g.players) {
		g.startRevealLocked()
	}
}

// startRevealLocked closes the poll, scores the round, and walks the
// options one at a time on a timer, truth last. Players who never
// voted are assigned the truth, so every ballot is accounted for.
func (g *bufala) startRevealLocked() {
	truth := normalizeAnswer(g.question.Answer)
	for _, p := range g.players {
		if _, ok := g.votes[p.sessionID]; !ok {
			g.votes[p.sessionID] = truth
		}
	}

	multiplier := 1
	if g.round == g.rounds {
		multiplier = 2
	}

	votersFor := make(map[string][]string)
	for _, p := range g.players {
		votersFor[g.votes[p.sessionID]] = append(votersFor[g.votes[p.sessionID]], p.name)
	}

	for _, p := range g.players {
		if g.votes[p.sessionID] == truth {
			p.score += bufalaTruthPoints * multiplier
		}
		if decoy, ok := g.answers[p.sessionID]; ok && decoy != truth {
			p.score += len(votersFor[decoy]) * bufalaDecoyPoints * multiplier
		}
	}

	// One step per decoy option, fewest votes first, then the truth.
	decoys := make([]string, 0, len(g.options))
	for _, option := range g.options {
		if option != truth {
			decoys = append(decoys, option)
		}
	}
	sort.SliceStable(decoys, func(i, j int) bool {
		return len(votersFor[decoys[i]]) < len(votersFor[decoys[j]])
	})

	g.revealSteps = g.revealSteps[:0]
	for _, option := range decoys {
		g.revealSteps = append(g.revealSteps, bufalaRevealStep{
			Option:  option,
			Authors: g.authorsOf(option),
			Voters:  votersFor[option],
		})
	}
	g.revealSteps = append(g.revealSteps, bufalaRevealStep{
		Option: truth,
		Voters: votersFor[truth],
		Truth:  true,
	})

	g.revealIdx = 0
	g.phase = bufalaReveal

	g.srv.viewAllLocked("reveal")
	g.revealStepLocked()
}

func (g *bufala) revealStepLocked() {
	g.srv.broadcastLocked(bufalaRevealMessage{
		Type:  "bufala_reveal",
		Step:  g.revealIdx + 1,
		Steps: len(g.revealSteps),
		Data:  g.revealSteps[g.revealIdx],
	})

	g.timer.schedule(g.srv, g.srv.cfg.revealDelay, func() {
		if g.phase != bufalaReveal {
			return
		}
		g.revealIdx++
		if g.revealIdx < len(g.revealSteps) {
			g.revealStepLocked()
			return
		}
		g.showBoardLocked()
	})
}

func (g *bufala) showBoardLocked() {
	final := g.round >= g.rounds
	if final {
		g.phase = bufalaGameOver
	} else {
		g.phase = bufalaLeaderboard
	}

	g.srv.viewAllLocked("board")
	g.srv.broadcastLocked(g.boardMessageLocked())

	if final {
		g.timer.stop()
		return
	}

	g.timer.schedule(g.srv, 2*g.srv.cfg.revealDelay, func() {
		if g.phase != bufalaLeaderboard {
			return
		}
		g.startRoundLocked()
	})
}

func (g *bufala) Resync(connID string) {
	identity := g.srv.identityByConn(connID)

	var p *bufalaPlayer
	if identity != nil {
		p = g.seatBySession(identity.SessionID)
		if p != nil {
			p.connID = connID
		}
	}

	switch g.phase {
	case bufalaLobby:
		g.srv.viewLocked(connID, "lobby")

	case bufalaWriting:
		g.srv.unicastLocked(connID, g.questionMessageLocked())
		if p == nil {
			g.srv.viewLocked(connID, "write")
		} else if _, done := g.answers[p.sessionID]; done {
			g.srv.viewLocked(connID, "wait")
		} else {
			g.srv.viewLocked(connID, "write")
		}

	case bufalaVoting:
		g.srv.unicastLocked(connID, g.optionsMessageLocked())
		if p == nil {
			g.srv.viewLocked(connID, "vote")
		} else if _, done := g.votes[p.sessionID]; done {
			g.srv.viewLocked(connID, "wait")
		} else {
			g.srv.viewLocked(connID, "vote")
		}

	case bufalaReveal:
		g.srv.viewLocked(connID, "reveal")
		g.srv.unicastLocked(connID, bufalaRevealMessage{
			Type:  "bufala_reveal",
			Step:  g.revealIdx + 1,
			Steps: len(g.revealSteps),
			Data:  g.revealSteps[g.revealIdx],
		})

	case bufalaLeaderboard, bufalaGameOver:
		g.srv.viewLocked(connID, "board")
		g.srv.unicastLocked(connID, g.boardMessageLocked())
	}
}

func (g *bufala) RemovePlayer(sessionID string) {
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

	g.players = append(g.players[:idx], g.players[idx+1:]...)
	delete(g.answers, sessionID)
	delete(g.votes, sessionID)

	switch g.phase {
	case bufalaWriting:
		g.broadcastProgressLocked()
		if len(g.players) > 0 && len(g.answers) >= len(g.players) {
			g.startVotingLocked()
		}
	case bufalaVoting:
		g.broadcastProgressLocked()
		if len(g.players) > 0 && len(g.votes) >= len(g.players) {
			g.startRevealLocked()
		}
	}
}

func (g *bufala) seatByConn(connID string) *bufalaPlayer {
	identity := g.srv.identityByConn(connID)
	if identity == nil {
		return nil
	}
	return g.seatBySession(identity.SessionID)
}

func (g *bufala) seatBySession(sessionID string) *bufalaPlayer {
	for _, p := range g.players {
		if p.sessionID == sessionID {
			return p
		}
	}
	return nil
}

func (g *bufala) validOption(option string) bool {
	for _, o := range g.options {
		if o == option {
			return true
		}
	}
	return false
}

func (g *bufala) authorsOf(option string) []string {
	var authors []string
	for _, p := range g.players {
		if g.answers[p.sessionID] == option {
			authors = append(authors, p.name)
		}
	}
	return authors
}

func (g *bufala) questionMessageLocked() bufalaQuestionMessage {
	return bufalaQuestionMessage{
		Type:   "bufala_question",
		Round:  g.round,
		Rounds: g.rounds,
		Text:   g.question.Text,
	}
}

func (g *bufala) optionsMessageLocked() bufalaOptionsMessage {
	return bufalaOptionsMessage{
		Type:    "bufala_options",
		Text:    g.question.Text,
		Options: g.options,
	}
}

func (g *bufala) boardMessageLocked() bufalaBoardMessage {
	msg := bufalaBoardMessage{
		Type:   "bufala_board",
		Round:  g.round,
		Rounds: g.rounds,
		Final:  g.phase == bufalaGameOver,
	}
	for _, p := range g.players {
		msg.Scores = append(msg.Scores, scoreEntry{Name: p.name, Score: p.score})
	}
	sort.SliceStable(msg.Scores, func(i, j int) bool {
		return msg.Scores[i].Score > msg.Scores[j].Score
	})
	return msg
}

func (g *bufala) broadcastProgressLocked() {
	submitted := len(g.answers)
	if g.phase == bufalaVoting {
		submitted = len(g.votes)
	}
	g.srv.broadcastLocked(bufalaProgressMessage{
		Type:      "bufala_progress",
		Phase:     g.phase,
		Submitted: submitted,
		Total:     len(g.players),
	})
}

func normalizeAnswer(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
