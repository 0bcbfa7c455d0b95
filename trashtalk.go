// Gamenight TrashTalk
//
// A comeback-writing battle. Players are paired off and each pair
// gets a prompt; both sides write their best line, then the rest of
// the room votes a winner, one battle at a time. An odd player out
// battles a ghost with a canned line. The last round is a free-for-
// all: one prompt, everyone writes, everyone votes.

package main

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"sort"
)

const (
	trashLobby    = "LOBBY"
	trashWriting  = "WRITING"
	trashVoting   = "VOTING"
	trashResult   = "RESULT"
	trashBoard    = "LEADERBOARD"
	trashGameOver = "GAME_OVER"
)

const (
	trashGhostID    = "ghost"
	trashGhostName  = "The Ghost"
	trashBasePoints = 1000
	trashNoAnswer   = "..."
)

type trashPlayer struct {
	seat
	score int
}

// trashEntry is one contestant's side of a battle. Entries snapshot
// the name so a battle stays renderable even if its author leaves.
type trashEntry struct {
	sessionID string // empty-handed ghost uses trashGhostID
	name      string
	answer    string
}

type trashBattle struct {
	prompt  string
	entries []trashEntry
	votes   map[string]string // voter sessionID -> entry sessionID
}

type trashTalk struct {
	srv   *Server
	timer roundTimer

	phase   string
	players []*trashPlayer
	round   int
	rounds  int
	deck    []string

	battles    []*trashBattle
	battleIdx  int
	lastResult *trashResultMessage
}

type trashPromptMessage struct {
	Type   string `json:"type"` // "trash_prompt"
	Round  int    `json:"round"`
	Rounds int    `json:"rounds"`
	Final  bool   `json:"final"`
	Prompt string `json:"prompt"`
}

type trashProgressMessage struct {
	Type      string `json:"type"` // "trash_progress"
	Phase     string `json:"phase"`
	Submitted int    `json:"submitted"`
	Total     int    `json:"total"`
}

type trashContestant struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Answer    string `json:"answer"`
}

type trashBattleMessage struct {
	Type        string            `json:"type"` // "trash_battle"
	Battle      int               `json:"battle"`
	Battles     int               `json:"battles"`
	Prompt      string            `json:"prompt"`
	Contestants []trashContestant `json:"contestants"`
}

type trashResultEntry struct {
	Name   string `json:"name"`
	Answer string `json:"answer"`
	Votes  int    `json:"votes"`
	Points int    `json:"points"`
}

type trashResultMessage struct {
	Type    string             `json:"type"` // "trash_result"
	Prompt  string             `json:"prompt"`
	Entries []trashResultEntry `json:"entries"`
}

type trashBoardMessage struct {
	Type   string       `json:"type"` // "trash_board"
	Round  int          `json:"round"`
	Rounds int          `json:"rounds"`
	Final  bool         `json:"final"`
	Scores []scoreEntry `json:"scores"`
}

type trashAnswerPayload struct {
	Answer string `json:"answer"`
}

type trashVotePayload struct {
	Target string `json:"target"` // entry session id
}

func newTrashTalk(srv *Server) Game {
	return &trashTalk{srv: srv}
}

func (g *trashTalk) Name() string {
	return "trashtalk"
}

func (g *trashTalk) halt() {
	g.timer.stop()
}

func (g *trashTalk) Init(roster []*PlayerIdentity) {
	g.timer.stop()

	g.players = make([]*trashPlayer, 0, len(roster))
	for _, p := range roster {
		g.players = append(g.players, &trashPlayer{seat: newSeat(p)})
	}

	g.phase = trashLobby
	g.round = 0
	g.rounds = g.srv.cfg.rounds

	g.deck = make([]string, len(trashPrompts))
	copy(g.deck, trashPrompts)
	rand.Shuffle(len(g.deck), func(i, j int) {
		g.deck[i], g.deck[j] = g.deck[j], g.deck[i]
	})

	g.battles = nil
	g.battleIdx = 0
	g.lastResult = nil

	g.srv.viewAllLocked("lobby")
	g.srv.broadcastRosterLocked()
}

func (g *trashTalk) Start() {
	if g.phase != trashLobby || len(g.players) < 3 {
		return
	}
	g.startRoundLocked()
}

func (g *trashTalk) finalRound() bool {
	return g.round >= g.rounds
}

// startRoundLocked pairs players off (or gathers everyone for the
// final all-vs-all) and opens the writing phase.
func (g *trashTalk) startRoundLocked() {
	g.round++
	g.battles = nil
	g.battleIdx = 0
	g.lastResult = nil

	shuffled := make([]*trashPlayer, len(g.players))
	copy(shuffled, g.players)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	if g.finalRound() {
		battle := &trashBattle{
			prompt: g.drawPromptLocked(),
			votes:  make(map[string]string),
		}
		for _, p := range shuffled {
			battle.entries = append(battle.entries, trashEntry{sessionID: p.sessionID, name: p.name})
		}
		g.battles = append(g.battles, battle)
	} else {
		for i := 0; i < len(shuffled); i += 2 {
			battle := &trashBattle{
				prompt: g.drawPromptLocked(),
				votes:  make(map[string]string),
			}
			battle.entries = append(battle.entries, trashEntry{
				sessionID: shuffled[i].sessionID,
				name:      shuffled[i].name,
			})
			if i+1 < len(shuffled) {
				battle.entries = append(battle.entries, trashEntry{
					sessionID: shuffled[i+1].sessionID,
					name:      shuffled[i+1].name,
				})
			} else {
				battle.entries = append(battle.entries, trashEntry{
					sessionID: trashGhostID,
					name:      trashGhostName,
					answer:    trashGhostLines[rand.IntN(len(trashGhostLines))],
				})
			}
			g.battles = append(g.battles, battle)
		}
	}

	g.phase = trashWriting

	g.srv.viewAllLocked("write")
	for _, p := range g.players {
		g.sendPromptLocked(p)
	}
	g.broadcastProgressLocked()

	g.timer.schedule(g.srv, g.srv.cfg.writeTimeout, func() {
		if g.phase != trashWriting {
			return
		}
		g.closeWritingLocked()
	})
}

func (g *trashTalk) drawPromptLocked() string {
	if len(g.deck) == 0 {
		g.deck = make([]string, len(trashPrompts))
		copy(g.deck, trashPrompts)
		rand.Shuffle(len(g.deck), func(i, j int) {
			g.deck[i], g.deck[j] = g.deck[j], g.deck[i]
		})
	}

	prompt := g.deck[len(g.deck)-1]
	g.deck = g.deck[:len(g.deck)-1]
	return prompt
}

func (g *trashTalk) HandleAction(connID, action string, data json.RawMessage) {
	p := g.seatByConn(connID)
	if p == nil {
		return
	}

	switch action {
	case "submit_answer":
		var payload trashAnswerPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		g.handleAnswerLocked(p, payload.Answer)

	case "vote":
		var payload trashVotePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		g.handleVoteLocked(p, payload.Target)
	}
}

func (g *trashTalk) handleAnswerLocked(p *trashPlayer, answer string) {
	if g.phase != trashWriting || answer == "" {
		return
	}

	entry := g.entryOf(p.sessionID)
	if entry == nil || entry.answer != "" {
		return
	}

	entry.answer = answer
	g.srv.viewLocked(p.connID, "wait")
	g.broadcastProgressLocked()

	if g.writingDoneLocked() {
		g.closeWritingLocked()
	}
}

func (g *trashTalk) writingDoneLocked() bool {
	for _, p := range g.players {
		if entry := g.entryOf(p.sessionID); entry != nil && entry.answer == "" {
			return false
		}
	}
	return true
}

func (g *trashTalk) closeWritingLocked() {
	for _, battle := range g.battles {
		for i := range battle.entries {
			if battle.entries[i].answer == "" {
				battle.entries[i].answer = trashNoAnswer
			}
		}
	}

	g.battleIdx = 0
	g.openBattleLocked()
}

func (g *trashTalk) openBattleLocked() {
	g.phase = trashVoting

	g.srv.viewAllLocked("battle")
	g.srv.broadcastLocked(g.battleMessageLocked())

	for _, p := range g.players {
		if g.mayVoteLocked(p) {
			g.srv.viewLocked(p.connID, "vote")
		}
	}

	if !g.votesOutstandingLocked() {
		g.resolveBattleLocked()
		return
	}

	g.timer.schedule(g.srv, g.srv.cfg.voteTimeout, func() {
		if g.phase != trashVoting {
			return
		}
		g.resolveBattleLocked()
	})
}

func (g *trashTalk) currentBattle() *trashBattle {
	if g.battleIdx < 0 || g.battleIdx >= len(g.battles) {
		return nil
	}
	return g.battles[g.battleIdx]
}

// mayVoteLocked reports whether p can vote in the current battle:
// contestants never vote on themselves, and in regular rounds they
// are excluded entirely.
func (g *trashTalk) mayVoteLocked(p *trashPlayer) bool {
	battle := g.currentBattle()
	if battle == nil {
		return false
	}

	if g.finalRound() {
		return true
	}

	for _, entry := range battle.entries {
		if entry.sessionID == p.sessionID {
			return false
		}
	}
	return true
}

func (g *trashTalk) votesOutstandingLocked() bool {
	battle := g.currentBattle()
	if battle == nil {
		return false
	}

	for _, p := range g.players {
		if !g.mayVoteLocked(p) {
			continue
		}
		if _, done := battle.votes[p.sessionID]; !done {
			return true
		}
	}
	return false
}

func (g *trashTalk) handleVoteLocked(p *trashPlayer, target string) {
	battle := g.currentBattle()
	if g.phase != trashVoting || battle == nil || !g.mayVoteLocked(p) {
		return
	}
	if _, done := battle.votes[p.sessionID]; done {
		return
	}
	if target == p.sessionID {
		return
	}

	found := false
	for _, entry := range battle.entries {
		if entry.sessionID == target {
			found = true
			break
		}
	}
	if !found {
		return
	}

	battle.votes[p.sessionID] = target
	g.srv.viewLocked(p.connID, "wait")
	g.broadcastProgressLocked()

	if !g.votesOutstandingLocked() {
		g.resolveBattleLocked()
	}
}

// resolveBattleLocked scores the current battle by vote share and
// shows the result, then moves on after a beat.
func (g *trashTalk) resolveBattleLocked() {
	battle := g.currentBattle()
	if battle == nil {
		return
	}

	counts := make(map[string]int)
	for _, target := range battle.votes {
		counts[target]++
	}
	total := len(battle.votes)

	result := &trashResultMessage{Type: "trash_result", Prompt: battle.prompt}
	for _, entry := range battle.entries {
		votes := counts[entry.sessionID]

		points := 0
		if total > 0 {
			points = int(math.Round(trashBasePoints * float64(votes) / float64(total)))
		}

		if p := g.seatBySession(entry.sessionID); p != nil {
			p.score += points
		}

		result.Entries = append(result.Entries, trashResultEntry{
			Name:   entry.name,
			Answer: entry.answer,
			Votes:  votes,
			Points: points,
		})
	}
	sort.SliceStable(result.Entries, func(i, j int) bool {
		return result.Entries[i].Votes > result.Entries[j].Votes
	})

	g.lastResult = result
	g.phase = trashResult

	g.srv.viewAllLocked("result")
	g.srv.broadcastLocked(*result)

	g.timer.schedule(g.srv, g.srv.cfg.revealDelay, func() {
		if g.phase != trashResult {
			return
		}
		g.battleIdx++
		if g.battleIdx < len(g.battles) {
			g.openBattleLocked()
			return
		}
		g.showBoardLocked()
	})
}

func (g *trashTalk) showBoardLocked() {
	if g.finalRound() {
		g.phase = trashGameOver
	} else {
		g.phase = trashBoard
	}

	g.srv.viewAllLocked("board")
	g.srv.broadcastLocked(g.boardMessageLocked())

	if g.phase == trashGameOver {
		g.timer.stop()
		return
	}

	g.timer.schedule(g.srv, 2*g.srv.cfg.revealDelay, func() {
		if g.phase != trashBoard {
			return
		}
		g.startRoundLocked()
	})
}

func (g *trashTalk) Resync(connID string) {
	identity := g.srv.identityByConn(connID)

	var p *trashPlayer
	if identity != nil {
		p = g.seatBySession(identity.SessionID)
		if p != nil {
			p.connID = connID
		}
	}

	switch g.phase {
	case trashLobby:
		g.srv.viewLocked(connID, "lobby")

	case trashWriting:
		if p == nil {
			g.srv.viewLocked(connID, "write")
			g.broadcastProgressLocked()
			return
		}
		g.sendPromptLocked(p)
		if entry := g.entryOf(p.sessionID); entry != nil && entry.answer != "" {
			g.srv.viewLocked(connID, "wait")
		} else {
			g.srv.viewLocked(connID, "write")
		}

	case trashVoting:
		g.srv.unicastLocked(connID, g.battleMessageLocked())
		battle := g.currentBattle()
		if p == nil || battle == nil {
			g.srv.viewLocked(connID, "battle")
			return
		}
		_, voted := battle.votes[p.sessionID]
		if g.mayVoteLocked(p) && !voted {
			g.srv.viewLocked(connID, "vote")
		} else {
			g.srv.viewLocked(connID, "wait")
		}

	case trashResult:
		g.srv.viewLocked(connID, "result")
		if g.lastResult != nil {
			g.srv.unicastLocked(connID, *g.lastResult)
		}

	case trashBoard, trashGameOver:
		g.srv.viewLocked(connID, "board")
		g.srv.unicastLocked(connID, g.boardMessageLocked())
	}
}

func (g *trashTalk) RemovePlayer(sessionID string) {
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

	// Entries stay as snapshots; only live votes need repair.
	switch g.phase {
	case trashWriting:
		if entry := g.entryOf(sessionID); entry != nil && entry.answer == "" {
			entry.answer = trashNoAnswer
		}
		g.broadcastProgressLocked()
		if g.writingDoneLocked() {
			g.closeWritingLocked()
		}

	case trashVoting:
		if battle := g.currentBattle(); battle != nil {
			delete(battle.votes, sessionID)
		}
		g.broadcastProgressLocked()
		if !g.votesOutstandingLocked() {
			g.resolveBattleLocked()
		}
	}
}

func (g *trashTalk) sendPromptLocked(p *trashPlayer) {
	battle := g.battleOf(p.sessionID)
	if battle == nil {
		return
	}
	g.srv.unicastLocked(p.connID, trashPromptMessage{
		Type:   "trash_prompt",
		Round:  g.round,
		Rounds: g.rounds,
		Final:  g.finalRound(),
		Prompt: battle.prompt,
	})
}

func (g *trashTalk) battleOf(sessionID string) *trashBattle {
	for _, battle := range g.battles {
		for _, entry := range battle.entries {
			if entry.sessionID == sessionID {
				return battle
			}
		}
	}
	return nil
}

func (g *trashTalk) entryOf(sessionID string) *trashEntry {
	for _, battle := range g.battles {
		for i := range battle.entries {
			if battle.entries[i].sessionID == sessionID {
				return &battle.entries[i]
			}
		}
	}
	return nil
}

func (g *trashTalk) seatByConn(connID string) *trashPlayer {
	identity := g.srv.identityByConn(connID)
	if identity == nil {
		return nil
	}
	return g.seatBySession(identity.SessionID)
}

func (g *trashTalk) seatBySession(sessionID string) *trashPlayer {
	for _, p := range g.players {
		if p.sessionID == sessionID {
			return p
		}
	}
	return nil
}

func (g *trashTalk) battleMessageLocked() trashBattleMessage {
	msg := trashBattleMessage{
		Type:    "trash_battle",
		Battle:  g.battleIdx + 1,
		Battles: len(g.battles),
	}
	if battle := g.currentBattle(); battle != nil {
		msg.Prompt = battle.prompt
		for _, entry := range battle.entries {
			msg.Contestants = append(msg.Contestants, trashContestant{
				SessionID: entry.sessionID,
				Name:      entry.name,
				Answer:    entry.answer,
			})
		}
	}
	return msg
}

func (g *trashTalk) boardMessageLocked() trashBoardMessage {
	msg := trashBoardMessage{
		Type:   "trash_board",
		Round:  g.round,
		Rounds: g.rounds,
		Final:  g.phase == trashGameOver,
	}
	for _, p := range g.players {
		msg.Scores = append(msg.Scores, scoreEntry{Name: p.name, Score: p.score})
	}
	sort.SliceStable(msg.Scores, func(i, j int) bool {
		return msg.Scores[i].Score > msg.Scores[j].Score
	})
	return msg
}

func (g *trashTalk) broadcastProgressLocked() {
	var submitted, total int

	switch g.phase {
	case trashWriting:
		for _, p := range g.players {
			if entry := g.entryOf(p.sessionID); entry != nil {
				total++
				if entry.answer != "" {
					submitted++
				}
			}
		}
	case trashVoting:
		battle := g.currentBattle()
		for _, p := range g.players {
			if !g.mayVoteLocked(p) {
				continue
			}
			total++
			if battle != nil {
				if _, done := battle.votes[p.sessionID]; done {
					submitted++
				}
			}
		}
	default:
		return
	}

	g.srv.broadcastLocked(trashProgressMessage{
		Type:      "trash_progress",
		Phase:     g.phase,
		Submitted: submitted,
		Total:     total,
	})
}
