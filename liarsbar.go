// Gamenight Liar's Bar
//
// A bluffing card game with a Russian-roulette twist. Each hand, every
// surviving player is dealt five cards and a rank is declared. On your
// turn you either slap 1-3 cards face-down claiming they match the
// declared rank, or you call the previous player a liar. A challenge
// flips the last play: if it was honest the challenger sits down at the
// revolver, otherwise the liar does. Empty your hand honestly and you
// are safe for the rest of the game; everyone else keeps pulling the
// trigger until only one player is left holding cards.

package main

import (
	"encoding/json"
	"math/rand/v2"
)

const (
	liarsLobby    = "LOBBY"
	liarsPlaying  = "PLAYING"
	liarsReveal   = "REVEAL"
	liarsRoulette = "ROULETTE"
	liarsGameOver = "GAME_OVER"
)

const (
	cardJoker    = "JOKER"
	chamberSize  = 6
	liarsHand    = 5
	maxPlayCards = 3
)

var liarsRanks = []string{"Q", "K", "A"}

type liarsPlayer struct {
	seat
	hand           []string
	alive          bool
	finished       bool
	rank           int
	shotsFired     int
	bulletPosition int
}

// liarsPlay is one face-down group on the table since the last
// challenge: who played it and what the cards actually are.
type liarsPlay struct {
	player *liarsPlayer
	cards  []string
}

type liarsBar struct {
	srv   *Server
	timer roundTimer

	phase        string
	players      []*liarsPlayer
	turnIndex    int
	declaredRank string
	table        []liarsPlay
	nextRank     int
	victim       *liarsPlayer
	nextStarter  *liarsPlayer
	triggerDone  bool
	lastReveal   *liarsRevealMessage
	lastShot     *liarsShotMessage
	standings    []liarsStanding
	deaths       []*liarsPlayer
}

type liarsSeatInfo struct {
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Cards    int    `json:"cards"`
	Alive    bool   `json:"alive"`
	Finished bool   `json:"finished"`
	Shots    int    `json:"shots"`
}

type liarsStateMessage struct {
	Type         string          `json:"type"` // "liars_state"
	Phase        string          `json:"phase"`
	DeclaredRank string          `json:"declared_rank,omitempty"`
	Turn         string          `json:"turn,omitempty"`
	TableCount   int             `json:"table_count"`
	LastPlayer   string          `json:"last_player,omitempty"`
	LastCount    int             `json:"last_count,omitempty"`
	Players      []liarsSeatInfo `json:"players"`
}

type liarsHandMessage struct {
	Type         string   `json:"type"` // "liars_hand"
	Cards        []string `json:"cards"`
	DeclaredRank string   `json:"declared_rank"`
}

type liarsRevealMessage struct {
	Type       string   `json:"type"` // "liars_reveal"
	Player     string   `json:"player"`
	Challenger string   `json:"challenger"`
	Cards      []string `json:"cards"`
	Truthful   bool     `json:"truthful"`
	Loser      string   `json:"loser"`
}

type liarsRouletteMessage struct {
	Type    string `json:"type"` // "liars_roulette"
	Victim  string `json:"victim"`
	Shots   int    `json:"shots"`
	CanPull bool   `json:"can_pull,omitempty"`
}

type liarsShotMessage struct {
	Type   string `json:"type"` // "liars_shot"
	Victim string `json:"victim"`
	Dead   bool   `json:"dead"`
	Shots  int    `json:"shots"`
}

type liarsStanding struct {
	Name string `json:"name"`
	Rank int    `json:"rank,omitempty"`
	Dead bool   `json:"dead"`
}

type liarsStandingsMessage struct {
	Type      string          `json:"type"` // "liars_standings"
	Standings []liarsStanding `json:"standings"`
}

type liarsPlayPayload struct {
	Indices []int `json:"indices"`
}

func newLiarsBar(srv *Server) Game {
	return &liarsBar{srv: srv}
}

func (g *liarsBar) Name() string {
	return "liarsbar"
}

func (g *liarsBar) halt() {
	g.timer.stop()
}

func (g *liarsBar) Init(roster []*PlayerIdentity) {
	g.timer.stop()

	g.players = make([]*liarsPlayer, 0, len(roster))
	for _, p := range roster {
		g.players = append(g.players, &liarsPlayer{
			seat:           newSeat(p),
			alive:          true,
			bulletPosition: rand.IntN(chamberSize),
		})
	}

	g.phase = liarsLobby
	g.turnIndex = 0
	g.declaredRank = ""
	g.table = nil
	g.nextRank = 1
	g.victim = nil
	g.nextStarter = nil
	g.lastReveal = nil
	g.lastShot = nil
	g.standings = nil
	g.deaths = nil

	g.srv.viewAllLocked("lobby")
	g.broadcastStateLocked()
}

func (g *liarsBar) Start() {
	if g.phase != liarsLobby || len(g.players) < 2 {
		return
	}

	g.startHandLocked(g.players[rand.IntN(len(g.players))])
}

// startHandLocked begins a fresh hand: a new declared rank, fresh
// five-card hands for everyone still in, an empty table, and the turn
// given to starter (or the next eligible player after it).
func (g *liarsBar) startHandLocked(starter *liarsPlayer) {
	g.timer.stop()

	g.declaredRank = liarsRanks[rand.IntN(len(liarsRanks))]
	g.table = nil
	g.victim = nil
	g.lastReveal = nil
	g.lastShot = nil

	for _, p := range g.players {
		if p.alive && !p.finished {
			p.hand = g.dealHandLocked()
		} else {
			p.hand = nil
		}
	}

	g.phase = liarsPlaying

	if idx := g.indexOf(starter); idx >= 0 {
		g.turnIndex = idx
	}
	if !g.eligibleForTurn(g.current()) {
		g.advanceTurnLocked()
	}

	g.srv.viewAllLocked("table")
	g.broadcastStateLocked()
	g.sendHandsLocked()
}

// dealHandLocked draws five weighted cards: roughly 15% jokers, with
// the remainder split across the three ranks.
func (g *liarsBar) dealHandLocked() []string {
	hand := make([]string, 0, liarsHand)
	for range liarsHand {
		hand = append(hand, g.drawCardLocked())
	}
	return hand
}

func (g *liarsBar) drawCardLocked() string {
	r := rand.Float64()
	switch {
	case r < 0.15:
		return cardJoker
	case r < 0.45:
		return liarsRanks[0]
	case r < 0.75:
		return liarsRanks[1]
	default:
		return liarsRanks[2]
	}
}

func (g *liarsBar) HandleAction(connID, action string, data json.RawMessage) {
	p := g.seatByConn(connID)
	if p == nil {
		return
	}

	switch action {
	case "play_cards":
		var payload liarsPlayPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		g.handlePlayLocked(p, payload.Indices)

	case "challenge":
		g.handleChallengeLocked(p)

	case "pull_trigger":
		g.handlePullLocked(p)
	}
}

func (g *liarsBar) handlePlayLocked(p *liarsPlayer, indices []int) {
	if g.phase != liarsPlaying || g.current() != p {
		return
	}
	if len(indices) < 1 || len(indices) > maxPlayCards {
		return
	}

	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(p.hand) || seen[idx] {
			return
		}
		seen[idx] = true
	}

	cards := make([]string, 0, len(indices))
	kept := make([]string, 0, len(p.hand)-len(indices))
	for i, card := range p.hand {
		if seen[i] {
			cards = append(cards, card)
		} else {
			kept = append(kept, card)
		}
	}
	p.hand = kept

	g.table = append(g.table, liarsPlay{player: p, cards: cards})

	g.advanceTurnLocked()
	g.broadcastStateLocked()
	g.sendHandLocked(p)
}

// handleChallengeLocked resolves a doubt call against the last play.
// The play was honest iff every card is the joker or the declared
// rank; the loser goes to the revolver.
func (g *liarsBar) handleChallengeLocked(p *liarsPlayer) {
	if g.phase != liarsPlaying || g.current() != p || len(g.table) == 0 {
		return
	}

	last := g.table[len(g.table)-1]
	if last.player == p || g.indexOf(last.player) < 0 {
		return
	}

	truthful := true
	for _, card := range last.cards {
		if card != cardJoker && card != g.declaredRank {
			truthful = false
			break
		}
	}

	var loser, winner *liarsPlayer
	if truthful {
		loser, winner = p, last.player
		if len(last.player.hand) == 0 && !last.player.finished {
			g.finishPlayerLocked(last.player)
		}
	} else {
		loser, winner = last.player, p
	}

	g.victim = loser
	g.nextStarter = winner

	g.lastReveal = &liarsRevealMessage{
		Type:       "liars_reveal",
		Player:     last.player.name,
		Challenger: p.name,
		Cards:      last.cards,
		Truthful:   truthful,
		Loser:      loser.name,
	}

	g.phase = liarsReveal
	g.srv.viewAllLocked("reveal")
	g.srv.broadcastLocked(*g.lastReveal)

	g.timer.schedule(g.srv, g.srv.cfg.revealDelay, func() {
		if g.phase != liarsReveal {
			return
		}
		g.enterRouletteLocked()
	})
}

func (g *liarsBar) enterRouletteLocked() {
	if g.victim == nil || g.indexOf(g.victim) < 0 {
		g.startHandLocked(g.nextStarter)
		return
	}

	g.phase = liarsRoulette
	g.triggerDone = false

	g.srv.viewAllLocked("roulette")
	g.srv.broadcastLocked(liarsRouletteMessage{
		Type:   "liars_roulette",
		Victim: g.victim.name,
		Shots:  g.victim.shotsFired,
	})
	g.srv.unicastLocked(g.victim.connID, liarsRouletteMessage{
		Type:    "liars_roulette",
		Victim:  g.victim.name,
		Shots:   g.victim.shotsFired,
		CanPull: true,
	})

	// Stalled victims pull automatically.
	g.timer.schedule(g.srv, g.srv.cfg.turnTimeout, func() {
		if g.phase != liarsRoulette || g.triggerDone {
			return
		}
		g.fireTriggerLocked()
	})
}

func (g *liarsBar) handlePullLocked(p *liarsPlayer) {
	if g.phase != liarsRoulette || p != g.victim || g.triggerDone {
		return
	}
	g.fireTriggerLocked()
}

func (g *liarsBar) fireTriggerLocked() {
	g.triggerDone = true
	victim := g.victim

	dead := victim.shotsFired == victim.bulletPosition
	if dead {
		victim.alive = false
		g.deaths = append(g.deaths, victim)
	} else {
		victim.shotsFired++
	}

	g.lastShot = &liarsShotMessage{
		Type:   "liars_shot",
		Victim: victim.name,
		Dead:   dead,
		Shots:  victim.shotsFired,
	}
	g.srv.broadcastLocked(*g.lastShot)

	if g.maybeFinishGameLocked() {
		return
	}

	starter := g.nextStarter
	if dead {
		starter = g.nextEligibleAfter(victim)
	}

	g.timer.schedule(g.srv, g.srv.cfg.revealDelay, func() {
		if g.phase != liarsRoulette {
			return
		}
		g.startHandLocked(starter)
	})
}

func (g *liarsBar) finishPlayerLocked(p *liarsPlayer) {
	p.finished = true
	p.rank = g.nextRank
	g.nextRank++
}

// maybeFinishGameLocked ends the game once fewer than two players are
// both alive and unfinished, ranking the one remaining if any.
func (g *liarsBar) maybeFinishGameLocked() bool {
	var remaining []*liarsPlayer
	for _, p := range g.players {
		if p.alive && !p.finished {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) >= 2 {
		return false
	}

	if len(remaining) == 1 {
		g.finishPlayerLocked(remaining[0])
	}

	g.timer.stop()
	g.phase = liarsGameOver

	g.standings = g.standings[:0]
	finished := make([]*liarsPlayer, 0, len(g.players))
	for _, p := range g.players {
		if p.finished {
			finished = append(finished, p)
		}
	}
	for rank := 1; rank <= len(g.players); rank++ {
		for _, p := range finished {
			if p.rank == rank {
				g.standings = append(g.standings, liarsStanding{Name: p.name, Rank: p.rank})
			}
		}
	}
	for i := len(g.deaths) - 1; i >= 0; i-- {
		g.standings = append(g.standings, liarsStanding{Name: g.deaths[i].name, Dead: true})
	}

	g.srv.viewAllLocked("standings")
	g.srv.broadcastLocked(liarsStandingsMessage{Type: "liars_standings", Standings: g.standings})

	return true
}

func (g *liarsBar) Resync(connID string) {
	identity := g.srv.identityByConn(connID)

	var p *liarsPlayer
	if identity != nil {
		p = g.seatBySession(identity.SessionID)
		if p != nil {
			p.connID = connID
		}
	}

	switch g.phase {
	case liarsLobby:
		g.srv.viewLocked(connID, "lobby")
		g.srv.unicastLocked(connID, g.stateMessageLocked())

	case liarsPlaying:
		g.srv.viewLocked(connID, "table")
		g.srv.unicastLocked(connID, g.stateMessageLocked())
		if p != nil {
			g.sendHandLocked(p)
		}

	case liarsReveal:
		g.srv.viewLocked(connID, "reveal")
		g.srv.unicastLocked(connID, g.stateMessageLocked())
		if g.lastReveal != nil {
			g.srv.unicastLocked(connID, *g.lastReveal)
		}

	case liarsRoulette:
		g.srv.viewLocked(connID, "roulette")
		g.srv.unicastLocked(connID, g.stateMessageLocked())
		if g.victim != nil {
			g.srv.unicastLocked(connID, liarsRouletteMessage{
				Type:    "liars_roulette",
				Victim:  g.victim.name,
				Shots:   g.victim.shotsFired,
				CanPull: p == g.victim && !g.triggerDone,
			})
		}
		if g.lastShot != nil {
			g.srv.unicastLocked(connID, *g.lastShot)
		}

	case liarsGameOver:
		g.srv.viewLocked(connID, "standings")
		g.srv.unicastLocked(connID, liarsStandingsMessage{Type: "liars_standings", Standings: g.standings})
	}
}

func (g *liarsBar) RemovePlayer(sessionID string) {
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
	if idx < g.turnIndex {
		g.turnIndex--
	}
	if g.turnIndex >= len(g.players) {
		g.turnIndex = 0
	}

	if g.phase == liarsLobby || g.phase == liarsGameOver {
		g.broadcastStateLocked()
		return
	}

	if g.maybeFinishGameLocked() {
		return
	}

	// If the removed player held the turn, authored a pending play, or
	// was the one at the revolver, the hand can no longer resolve;
	// start a fresh one for the survivors.
	tainted := g.victim == removed
	for _, play := range g.table {
		if play.player == removed {
			tainted = true
			break
		}
	}
	if g.phase == liarsPlaying && !g.eligibleForTurn(g.current()) {
		tainted = true
	}

	if tainted {
		starter := g.nextStarter
		if starter == removed {
			starter = nil
		}
		g.startHandLocked(starter)
		return
	}

	g.broadcastStateLocked()
}

func (g *liarsBar) current() *liarsPlayer {
	if len(g.players) == 0 || g.turnIndex < 0 || g.turnIndex >= len(g.players) {
		return nil
	}
	return g.players[g.turnIndex]
}

func (g *liarsBar) eligibleForTurn(p *liarsPlayer) bool {
	return p != nil && p.alive && !p.finished && len(p.hand) > 0
}

// advanceTurnLocked moves the turn to the next eligible player,
// bounded at two laps so an all-finished roster (which should already
// have ended the game) cannot spin forever.
func (g *liarsBar) advanceTurnLocked() {
	if len(g.players) == 0 {
		return
	}

	for attempt := 1; attempt <= 2*len(g.players); attempt++ {
		next := (g.turnIndex + attempt) % len(g.players)
		if g.eligibleForTurn(g.players[next]) {
			g.turnIndex = next
			return
		}
	}
}

func (g *liarsBar) nextEligibleAfter(p *liarsPlayer) *liarsPlayer {
	start := g.indexOf(p)
	if start < 0 {
		start = g.turnIndex
	}

	for attempt := 1; attempt <= 2*len(g.players); attempt++ {
		next := g.players[(start+attempt)%len(g.players)]
		if next.alive && !next.finished {
			return next
		}
	}
	return nil
}

func (g *liarsBar) indexOf(p *liarsPlayer) int {
	for i, other := range g.players {
		if other == p {
			return i
		}
	}
	return -1
}

func (g *liarsBar) seatByConn(connID string) *liarsPlayer {
	identity := g.srv.identityByConn(connID)
	if identity == nil {
		return nil
	}
	return g.seatBySession(identity.SessionID)
}

func (g *liarsBar) seatBySession(sessionID string) *liarsPlayer {
	for _, p := range g.players {
		if p.sessionID == sessionID {
			return p
		}
	}
	return nil
}

func (g *liarsBar) stateMessageLocked() liarsStateMessage {
	msg := liarsStateMessage{
		Type:         "liars_state",
		Phase:        g.phase,
		DeclaredRank: g.declaredRank,
	}

	if current := g.current(); g.phase == liarsPlaying && g.eligibleForTurn(current) {
		msg.Turn = current.name
	}

	for _, play := range g.table {
		msg.TableCount += len(play.cards)
	}
	if len(g.table) > 0 {
		last := g.table[len(g.table)-1]
		msg.LastPlayer = last.player.name
		msg.LastCount = len(last.cards)
	}

	for _, p := range g.players {
		msg.Players = append(msg.Players, liarsSeatInfo{
			Name:     p.name,
			Avatar:   p.avatar,
			Cards:    len(p.hand),
			Alive:    p.alive,
			Finished: p.finished,
			Shots:    p.shotsFired,
		})
	}

	return msg
}

func (g *liarsBar) broadcastStateLocked() {
	g.srv.broadcastLocked(g.stateMessageLocked())
}

func (g *liarsBar) sendHandsLocked() {
	for _, p := range g.players {
		if p.alive && !p.finished {
			g.sendHandLocked(p)
		}
	}
}

func (g *liarsBar) sendHandLocked(p *liarsPlayer) {
	g.srv.unicastLocked(p.connID, liarsHandMessage{
		Type:         "liars_hand",
		Cards:        p.hand,
		DeclaredRank: g.declaredRank,
	})
}
