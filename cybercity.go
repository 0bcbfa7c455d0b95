// Gamenight CyberCity
//
// A fast property-trading board game. Players take turns rolling two
// dice around a 24-tile loop of neon districts, transit stations and
// utilities: buy what you land on, collect rent from trespassers,
// build up monopolies, and haggle tile-and-cash trades. Go broke and
// you are out; the last solvent player owns the city.

package main

import (
	"encoding/json"
	"math/rand/v2"
	"sort"
)

const (
	cyberLobby    = "LOBBY"
	cyberPlaying  = "PLAYING"
	cyberGameOver = "GAME_OVER"
)

const (
	tileStart    = "start"
	tileFree     = "free"
	tileProperty = "property"
	tileStation  = "station"
	tileUtility  = "utility"
	tileTax      = "tax"
)

const (
	cyberStartMoney = 1500
	cyberLapBonus   = 200
	cyberMaxHouses  = 4
)

const (
	stageRoll   = "ROLL"
	stageManage = "MANAGE"
)

type cyberTile struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Group  string `json:"group,omitempty"`
	Price  int    `json:"price,omitempty"` // tax amount for tax tiles
	Rent   int    `json:"rent,omitempty"`
	Owner  string `json:"owner,omitempty"` // session id
	Houses int    `json:"houses,omitempty"`
}

type cyberPlayer struct {
	seat
	money    int
	position int
	alive    bool
}

type cyberTrade struct {
	from       string // session ids
	to         string
	offerTiles []int
	offerCash  int
	wantTiles  []int
	wantCash   int
}

type cyberCity struct {
	srv   *Server
	timer roundTimer

	phase     string
	players   []*cyberPlayer
	board     []cyberTile
	turnIndex int
	stage     string
	lastRoll  [2]int
	trade     *cyberTrade
}

type cyberSeatInfo struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Money     int    `json:"money"`
	Position  int    `json:"position"`
	Alive     bool   `json:"alive"`
}

type cyberStateMessage struct {
	Type     string          `json:"type"` // "cyber_state"
	Phase    string          `json:"phase"`
	Stage    string          `json:"stage,omitempty"`
	Turn     string          `json:"turn,omitempty"`
	LastRoll [2]int          `json:"last_roll,omitempty"`
	Board    []cyberTile     `json:"board"`
	Players  []cyberSeatInfo `json:"players"`
}

type cyberRollMessage struct {
	Type   string `json:"type"` // "cyber_roll"
	Player string `json:"player"`
	Dice   [2]int `json:"dice"`
	Tile   string `json:"tile"`
	Rent   int    `json:"rent,omitempty"`
	PaidTo string `json:"paid_to,omitempty"`
	Bonus  int    `json:"bonus,omitempty"`
}

type cyberTradeMessage struct {
	Type       string `json:"type"` // "cyber_trade"
	From       string `json:"from"`
	To         string `json:"to"`
	OfferTiles []int  `json:"offer_tiles,omitempty"`
	OfferCash  int    `json:"offer_cash,omitempty"`
	WantTiles  []int  `json:"want_tiles,omitempty"`
	WantCash   int    `json:"want_cash,omitempty"`
}

type cyberStandingsMessage struct {
	Type   string       `json:"type"` // "cyber_standings"
	Winner string       `json:"winner,omitempty"`
	Scores []scoreEntry `json:"scores"`
}

type cyberBuildPayload struct {
	Tile int `json:"tile"`
}

type cyberTradePayload struct {
	To         string `json:"to"` // session id
	OfferTiles []int  `json:"offer_tiles"`
	OfferCash  int    `json:"offer_cash"`
	WantTiles  []int  `json:"want_tiles"`
	WantCash   int    `json:"want_cash"`
}

type cyberRespondPayload struct {
	Accept bool `json:"accept"`
}

func newCyberCity(srv *Server) Game {
	return &cyberCity{srv: srv}
}

func (g *cyberCity) Name() string {
	return "cybercity"
}

func (g *cyberCity) halt() {
	g.timer.stop()
}

func (g *cyberCity) Init(roster []*PlayerIdentity) {
	g.timer.stop()

	g.players = make([]*cyberPlayer, 0, len(roster))
	for _, p := range roster {
		g.players = append(g.players, &cyberPlayer{
			seat:  newSeat(p),
			money: cyberStartMoney,
			alive: true,
		})
	}

	g.board = make([]cyberTile, len(cyberBoard))
	copy(g.board, cyberBoard)

	g.phase = cyberLobby
	g.turnIndex = 0
	g.stage = ""
	g.trade = nil

	g.srv.viewAllLocked("lobby")
	g.broadcastStateLocked()
}

func (g *cyberCity) Start() {
	if g.phase != cyberLobby || len(g.players) < 2 {
		return
	}

	g.phase = cyberPlaying
	g.turnIndex = rand.IntN(len(g.players))
	g.srv.viewAllLocked("board")
	g.beginTurnLocked()
}

func (g *cyberCity) beginTurnLocked() {
	g.stage = stageRoll
	g.trade = nil
	g.broadcastStateLocked()

	// Idle turns end themselves.
	g.timer.schedule(g.srv, g.srv.cfg.turnTimeout, func() {
		if g.phase != cyberPlaying {
			return
		}
		g.endTurnLocked()
	})
}

func (g *cyberCity) HandleAction(connID, action string, data json.RawMessage) {
	p := g.seatByConn(connID)
	if p == nil {
		return
	}

	switch action {
	case "roll_dice":
		g.handleRollLocked(p)

	case "buy":
		g.handleBuyLocked(p)

	case "build":
		var payload cyberBuildPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		g.handleBuildLocked(p, payload.Tile)

	case "propose_trade":
		var payload cyberTradePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		g.handleProposeLocked(p, payload)

	case "respond_trade":
		var payload cyberRespondPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		g.handleRespondLocked(p, payload.Accept)

	case "end_turn":
		if g.phase != cyberPlaying || g.current() != p || g.stage != stageManage {
			return
		}
		g.endTurnLocked()
	}
}

func (g *cyberCity) handleRollLocked(p *cyberPlayer) {
	if g.phase != cyberPlaying || g.current() != p || g.stage != stageRoll {
		return
	}

	d1, d2 := 1+rand.IntN(6), 1+rand.IntN(6)
	g.lastRoll = [2]int{d1, d2}

	roll := cyberRollMessage{Type: "cyber_roll", Player: p.name, Dice: g.lastRoll}

	next := p.position + d1 + d2
	if next >= len(g.board) {
		next -= len(g.board)
		p.money += cyberLapBonus
		roll.Bonus = cyberLapBonus
	}
	p.position = next

	tile := &g.board[next]
	roll.Tile = tile.Name

	switch tile.Kind {
	case tileTax:
		roll.Rent = g.payLocked(p, nil, tile.Price)

	case tileProperty, tileStation, tileUtility:
		owner := g.seatBySession(tile.Owner)
		if owner != nil && owner != p && owner.alive {
			rent := g.rentLocked(tile, d1+d2)
			roll.Rent = g.payLocked(p, owner, rent)
			roll.PaidTo = owner.name
		}
	}

	g.stage = stageManage
	g.srv.broadcastLocked(roll)

	if g.maybeFinishGameLocked() {
		return
	}

	// A roll that bankrupted the roller leaves nothing to manage.
	if !p.alive {
		g.endTurnLocked()
		return
	}

	g.broadcastStateLocked()
}

// rentLocked prices a stay on an owned tile: properties double for a
// completed group and again per house, stations double per extra
// station held, utilities charge a multiple of the dice.
func (g *cyberCity) rentLocked(tile *cyberTile, dice int) int {
	switch tile.Kind {
	case tileProperty:
		rent := tile.Rent
		if g.ownsGroupLocked(tile.Owner, tile.Group) {
			rent *= 2
		}
		return rent << tile.Houses

	case tileStation:
		owned := g.countKindLocked(tile.Owner, tileStation)
		return tile.Rent << (owned - 1)

	case tileUtility:
		if g.countKindLocked(tile.Owner, tileUtility) > 1 {
			return dice * 10
		}
		return dice * 4
	}
	return 0
}

func (g *cyberCity) ownsGroupLocked(sessionID, group string) bool {
	for i := range g.board {
		if g.board[i].Group == group && g.board[i].Owner != sessionID {
			return false
		}
	}
	return group != ""
}

func (g *cyberCity) countKindLocked(sessionID, kind string) int {
	count := 0
	for i := range g.board {
		if g.board[i].Kind == kind && g.board[i].Owner == sessionID {
			count++
		}
	}
	return count
}

// payLocked moves amount from p to recipient (nil for the bank),
// capped at what p has; going under zero bankrupts the payer and
// frees their tiles.
func (g *cyberCity) payLocked(p, recipient *cyberPlayer, amount int) int {
	paid := amount
	if paid > p.money {
		paid = p.money
	}

	p.money -= amount
	if recipient != nil {
		recipient.money += paid
	}

	if p.money < 0 {
		g.bankruptLocked(p)
	}

	return paid
}

func (g *cyberCity) bankruptLocked(p *cyberPlayer) {
	p.alive = false
	p.money = 0

	for i := range g.board {
		if g.board[i].Owner == p.sessionID {
			g.board[i].Owner = ""
			g.board[i].Houses = 0
		}
	}

	if g.trade != nil && (g.trade.from == p.sessionID || g.trade.to == p.sessionID) {
		g.trade = nil
	}
}

func (g *cyberCity) handleBuyLocked(p *cyberPlayer) {
	if g.phase != cyberPlaying || g.current() != p || g.stage != stageManage {
		return
	}

	tile := &g.board[p.position]
	switch tile.Kind {
	case tileProperty, tileStation, tileUtility:
	default:
		return
	}

	if tile.Owner != "" || tile.Price > p.money {
		return
	}

	p.money -= tile.Price
	tile.Owner = p.sessionID

	g.broadcastStateLocked()
}

func (g *cyberCity) handleBuildLocked(p *cyberPlayer, idx int) {
	if g.phase != cyberPlaying || g.current() != p || g.stage != stageManage {
		return
	}
	if idx < 0 || idx >= len(g.board) {
		return
	}

	tile := &g.board[idx]
	if tile.Kind != tileProperty || tile.Owner != p.sessionID {
		return
	}
	if !g.ownsGroupLocked(p.sessionID, tile.Group) || tile.Houses >= cyberMaxHouses {
		return
	}

	cost := tile.Price / 2
	if cost > p.money {
		return
	}

	p.money -= cost
	tile.Houses++

	g.broadcastStateLocked()
}

func (g *cyberCity) handleProposeLocked(p *cyberPlayer, payload cyberTradePayload) {
	if g.phase != cyberPlaying || g.current() != p || g.stage != stageManage {
		return
	}
	if g.trade != nil {
		return
	}

	target := g.seatBySession(payload.To)
	if target == nil || target == p || !target.alive {
		return
	}
	if payload.OfferCash < 0 || payload.OfferCash > p.money {
		return
	}
	if payload.WantCash < 0 || payload.WantCash > target.money {
		return
	}
	if !g.tilesOwnedLocked(p.sessionID, payload.OfferTiles) {
		return
	}
	if !g.tilesOwnedLocked(target.sessionID, payload.WantTiles) {
		return
	}

	g.trade = &cyberTrade{
		from:       p.sessionID,
		to:         target.sessionID,
		offerTiles: payload.OfferTiles,
		offerCash:  payload.OfferCash,
		wantTiles:  payload.WantTiles,
		wantCash:   payload.WantCash,
	}

	g.srv.unicastLocked(target.connID, g.tradeMessageLocked())
}

func (g *cyberCity) handleRespondLocked(p *cyberPlayer, accept bool) {
	if g.phase != cyberPlaying || g.trade == nil || g.trade.to != p.sessionID {
		return
	}

	trade := g.trade
	g.trade = nil

	if !accept {
		g.broadcastStateLocked()
		return
	}

	from := g.seatBySession(trade.from)
	to := g.seatBySession(trade.to)
	if from == nil || to == nil || !from.alive || !to.alive {
		return
	}

	// Holdings may have changed since the proposal; re-verify before
	// moving anything.
	if trade.offerCash > from.money || trade.wantCash > to.money {
		return
	}
	if !g.tilesOwnedLocked(from.sessionID, trade.offerTiles) {
		return
	}
	if !g.tilesOwnedLocked(to.sessionID, trade.wantTiles) {
		return
	}

	from.money += trade.wantCash - trade.offerCash
	to.money += trade.offerCash - trade.wantCash
	for _, idx := range trade.offerTiles {
		g.board[idx].Owner = to.sessionID
	}
	for _, idx := range trade.wantTiles {
		g.board[idx].Owner = from.sessionID
	}

	g.broadcastStateLocked()
}

func (g *cyberCity) tilesOwnedLocked(sessionID string, tiles []int) bool {
	for _, idx := range tiles {
		if idx < 0 || idx >= len(g.board) || g.board[idx].Owner != sessionID {
			return false
		}
	}
	return true
}

func (g *cyberCity) endTurnLocked() {
	g.trade = nil

	for attempt := 1; attempt <= 2*len(g.players); attempt++ {
		next := (g.turnIndex + attempt) % len(g.players)
		if g.players[next].alive {
			g.turnIndex = next
			break
		}
	}

	g.beginTurnLocked()
}

func (g *cyberCity) maybeFinishGameLocked() bool {
	alive := make([]*cyberPlayer, 0, len(g.players))
	for _, p := range g.players {
		if p.alive {
			alive = append(alive, p)
		}
	}
	if len(alive) > 1 {
		return false
	}

	g.timer.stop()
	g.phase = cyberGameOver
	g.stage = ""

	g.srv.viewAllLocked("standings")
	g.srv.broadcastLocked(g.standingsMessageLocked())

	return true
}

func (g *cyberCity) standingsMessageLocked() cyberStandingsMessage {
	msg := cyberStandingsMessage{Type: "cyber_standings"}

	for _, p := range g.players {
		if p.alive {
			msg.Winner = p.name
		}
		msg.Scores = append(msg.Scores, scoreEntry{Name: p.name, Score: p.money})
	}
	sort.SliceStable(msg.Scores, func(i, j int) bool {
		return msg.Scores[i].Score > msg.Scores[j].Score
	})

	return msg
}

func (g *cyberCity) Resync(connID string) {
	identity := g.srv.identityByConn(connID)

	var p *cyberPlayer
	if identity != nil {
		p = g.seatBySession(identity.SessionID)
		if p != nil {
			p.connID = connID
		}
	}

	switch g.phase {
	case cyberLobby:
		g.srv.viewLocked(connID, "lobby")
		g.srv.unicastLocked(connID, g.stateMessageLocked())

	case cyberPlaying:
		g.srv.viewLocked(connID, "board")
		g.srv.unicastLocked(connID, g.stateMessageLocked())
		if p != nil && g.trade != nil && g.trade.to == p.sessionID {
			g.srv.unicastLocked(connID, g.tradeMessageLocked())
		}

	case cyberGameOver:
		g.srv.viewLocked(connID, "standings")
		g.srv.unicastLocked(connID, g.standingsMessageLocked())
	}
}

func (g *cyberCity) RemovePlayer(sessionID string) {
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
	wasCurrent := g.current() == removed

	for i := range g.board {
		if g.board[i].Owner == sessionID {
			g.board[i].Owner = ""
			g.board[i].Houses = 0
		}
	}
	if g.trade != nil && (g.trade.from == sessionID || g.trade.to == sessionID) {
		g.trade = nil
	}

	g.players = append(g.players[:idx], g.players[idx+1:]...)
	if idx < g.turnIndex {
		g.turnIndex--
	}
	if g.turnIndex >= len(g.players) {
		g.turnIndex = 0
	}

	if g.phase != cyberPlaying {
		g.broadcastStateLocked()
		return
	}

	if g.maybeFinishGameLocked() {
		return
	}

	if wasCurrent {
		if !g.current().alive {
			g.endTurnLocked()
			return
		}
		g.beginTurnLocked()
		return
	}

	g.broadcastStateLocked()
}

func (g *cyberCity) current() *cyberPlayer {
	if len(g.players) == 0 || g.turnIndex < 0 || g.turnIndex >= len(g.players) {
		return nil
	}
	return g.players[g.turnIndex]
}

func (g *cyberCity) seatByConn(connID string) *cyberPlayer {
	identity := g.srv.identityByConn(connID)
	if identity == nil {
		return nil
	}
	return g.seatBySession(identity.SessionID)
}

func (g *cyberCity) seatBySession(sessionID string) *cyberPlayer {
	if sessionID == "" {
		return nil
	}
	for _, p := range g.players {
		if p.sessionID == sessionID {
			return p
		}
	}
	return nil
}

func (g *cyberCity) tradeMessageLocked() cyberTradeMessage {
	msg := cyberTradeMessage{Type: "cyber_trade"}
	if g.trade == nil {
		return msg
	}

	if from := g.seatBySession(g.trade.from); from != nil {
		msg.From = from.name
	}
	if to := g.seatBySession(g.trade.to); to != nil {
		msg.To = to.name
	}
	msg.OfferTiles = g.trade.offerTiles
	msg.OfferCash = g.trade.offerCash
	msg.WantTiles = g.trade.wantTiles
	msg.WantCash = g.trade.wantCash

	return msg
}

func (g *cyberCity) stateMessageLocked() cyberStateMessage {
	msg := cyberStateMessage{
		Type:     "cyber_state",
		Phase:    g.phase,
		Stage:    g.stage,
		LastRoll: g.lastRoll,
		Board:    g.board,
	}

	if current := g.current(); g.phase == cyberPlaying && current != nil {
		msg.Turn = current.name
	}

	for _, p := range g.players {
		msg.Players = append(msg.Players, cyberSeatInfo{
			SessionID: p.sessionID,
			Name:      p.name,
			Money:     p.money,
			Position:  p.position,
			Alive:     p.alive,
		})
	}

	return msg
}

func (g *cyberCity) broadcastStateLocked() {
	g.srv.broadcastLocked(g.stateMessageLocked())
}
