package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCyberCity(t *testing.T, names ...string) (*Server, *cyberCity, []*Client) {
	t.Helper()

	srv := newTestServer(t)
	addTV(srv)

	clients := make([]*Client, 0, len(names))
	for _, name := range names {
		c := addClient(srv)
		joinPlayer(t, srv, c, name)
		clients = append(clients, c)
	}

	srv.mu.Lock()
	srv.startGameLocked("cybercity")
	g, ok := srv.active.(*cyberCity)
	require.True(t, ok)
	srv.mu.Unlock()

	srv.handle(clients[0], clientMessage{Type: "start"})

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Equal(t, cyberPlaying, g.phase)

	return srv, g, clients
}

func cyberIndex(g *cyberCity, p *cyberPlayer) int {
	for i, other := range g.players {
		if other == p {
			return i
		}
	}
	return -1
}

func cyberSeat(t *testing.T, g *cyberCity, name string) *cyberPlayer {
	t.Helper()

	for _, p := range g.players {
		if p.name == name {
			return p
		}
	}
	t.Fatalf("no seat named %q", name)
	return nil
}

func TestCyberPropertyRent(t *testing.T) {
	srv, g, _ := setupCyberCity(t, "Alice", "Bob")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	g.timer.stop()

	alice := cyberSeat(t, g, "Alice")

	// Neon Alley alone rents at face value.
	g.board[1].Owner = alice.sessionID
	assert.Equal(t, 4, g.rentLocked(&g.board[1], 7))

	// Completing the neon group doubles it.
	g.board[2].Owner = alice.sessionID
	g.board[4].Owner = alice.sessionID
	assert.Equal(t, 8, g.rentLocked(&g.board[1], 7))

	// Each house doubles it again.
	g.board[1].Houses = 2
	assert.Equal(t, 32, g.rentLocked(&g.board[1], 7))
}

func TestCyberStationRent(t *testing.T) {
	srv, g, _ := setupCyberCity(t, "Alice", "Bob")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	g.timer.stop()

	alice := cyberSeat(t, g, "Alice")

	g.board[3].Owner = alice.sessionID
	assert.Equal(t, 25, g.rentLocked(&g.board[3], 7))

	g.board[10].Owner = alice.sessionID
	assert.Equal(t, 50, g.rentLocked(&g.board[3], 7))

	g.board[15].Owner = alice.sessionID
	g.board[22].Owner = alice.sessionID
	assert.Equal(t, 200, g.rentLocked(&g.board[3], 7), "rent doubles per extra station held")
}

func TestCyberUtilityRent(t *testing.T) {
	srv, g, _ := setupCyberCity(t, "Alice", "Bob")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	g.timer.stop()

	alice := cyberSeat(t, g, "Alice")

	g.board[8].Owner = alice.sessionID
	assert.Equal(t, 28, g.rentLocked(&g.board[8], 7), "one utility charges four times the dice")

	g.board[17].Owner = alice.sessionID
	assert.Equal(t, 70, g.rentLocked(&g.board[8], 7), "both utilities charge ten times the dice")
}

func TestCyberBuyTile(t *testing.T) {
	srv, g, clients := setupCyberCity(t, "Alice", "Bob")

	srv.mu.Lock()
	alice := cyberSeat(t, g, "Alice")
	g.turnIndex = cyberIndex(g, alice)
	g.stage = stageManage
	alice.position = 1 // Neon Alley, price 60
	srv.mu.Unlock()

	aliceClient := clientNamed(srv, clients, "Alice")
	srv.handle(aliceClient, clientMessage{Type: "buy"})

	srv.mu.Lock()
	defer srv.mu.Unlock()
	g.timer.stop()

	assert.Equal(t, alice.sessionID, g.board[1].Owner)
	assert.Equal(t, cyberStartMoney-60, alice.money)

	// Buying an owned tile again is a no-op.
	srv.mu.Unlock()
	srv.handle(aliceClient, clientMessage{Type: "buy"})
	srv.mu.Lock()
	assert.Equal(t, cyberStartMoney-60, alice.money)
}

func TestCyberBuildRequiresMonopoly(t *testing.T) {
	srv, g, clients := setupCyberCity(t, "Alice", "Bob")

	srv.mu.Lock()
	alice := cyberSeat(t, g, "Alice")
	g.turnIndex = cyberIndex(g, alice)
	g.stage = stageManage
	g.board[1].Owner = alice.sessionID
	srv.mu.Unlock()

	aliceClient := clientNamed(srv, clients, "Alice")
	build := func(tile int) {
		srv.handle(aliceClient, clientMessage{
			Type: "build",
			Data: raw(t, cyberBuildPayload{Tile: tile}),
		})
	}

	build(1)

	srv.mu.Lock()
	assert.Equal(t, 0, g.board[1].Houses, "no houses without the full group")
	g.board[2].Owner = alice.sessionID
	g.board[4].Owner = alice.sessionID
	srv.mu.Unlock()

	build(1)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	g.timer.stop()

	assert.Equal(t, 1, g.board[1].Houses)
	assert.Equal(t, cyberStartMoney-30, alice.money, "a house costs half the tile price")

	g.board[1].Houses = cyberMaxHouses
	srv.mu.Unlock()
	build(1)
	srv.mu.Lock()
	assert.Equal(t, cyberMaxHouses, g.board[1].Houses, "houses cap out")
}

func TestCyberBankruptcyFreesTilesAndEndsGame(t *testing.T) {
	srv, g, _ := setupCyberCity(t, "Alice", "Bob")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	g.timer.stop()

	alice := cyberSeat(t, g, "Alice")
	bob := cyberSeat(t, g, "Bob")

	g.board[1].Owner = alice.sessionID
	g.board[1].Houses = 3
	alice.money = 50

	paid := g.payLocked(alice, bob, 200)

	assert.Equal(t, 50, paid, "payment caps at what the payer holds")
	assert.False(t, alice.alive)
	assert.Equal(t, 0, alice.money)
	assert.Equal(t, cyberStartMoney+50, bob.money)
	assert.Empty(t, g.board[1].Owner, "a bankrupt's tiles return to the market")
	assert.Equal(t, 0, g.board[1].Houses)

	require.True(t, g.maybeFinishGameLocked())
	assert.Equal(t, cyberGameOver, g.phase)
	assert.Equal(t, "Bob", g.standingsMessageLocked().Winner)
}

func TestCyberTradeAccept(t *testing.T) {
	srv, g, clients := setupCyberCity(t, "Alice", "Bob")

	srv.mu.Lock()
	alice := cyberSeat(t, g, "Alice")
	bob := cyberSeat(t, g, "Bob")
	g.turnIndex = cyberIndex(g, alice)
	g.stage = stageManage
	g.board[1].Owner = alice.sessionID
	g.board[7].Owner = bob.sessionID
	srv.mu.Unlock()

	aliceClient := clientNamed(srv, clients, "Alice")
	bobClient := clientNamed(srv, clients, "Bob")
	drain(bobClient)

	srv.handle(aliceClient, clientMessage{
		Type: "propose_trade",
		Data: raw(t, cyberTradePayload{
			To:         bob.sessionID,
			OfferTiles: []int{1},
			OfferCash:  100,
			WantTiles:  []int{7},
		}),
	})

	offered := false
	for _, m := range drain(bobClient) {
		if tm, ok := m.(cyberTradeMessage); ok {
			offered = true
			assert.Equal(t, "Alice", tm.From)
			assert.Equal(t, []int{1}, tm.OfferTiles)
			assert.Equal(t, 100, tm.OfferCash)
		}
	}
	require.True(t, offered, "the counterparty is shown the offer")

	srv.handle(bobClient, clientMessage{
		Type: "respond_trade",
		Data: raw(t, cyberRespondPayload{Accept: true}),
	})

	srv.mu.Lock()
	defer srv.mu.Unlock()
	g.timer.stop()

	assert.Equal(t, bob.sessionID, g.board[1].Owner)
	assert.Equal(t, alice.sessionID, g.board[7].Owner)
	assert.Equal(t, cyberStartMoney-100, alice.money)
	assert.Equal(t, cyberStartMoney+100, bob.money)
	assert.Nil(t, g.trade)
}

func TestCyberTradeRevalidatedOnAccept(t *testing.T) {
	srv, g, clients := setupCyberCity(t, "Alice", "Bob")

	srv.mu.Lock()
	alice := cyberSeat(t, g, "Alice")
	bob := cyberSeat(t, g, "Bob")
	g.turnIndex = cyberIndex(g, alice)
	g.stage = stageManage
	g.board[1].Owner = alice.sessionID
	srv.mu.Unlock()

	aliceClient := clientNamed(srv, clients, "Alice")
	bobClient := clientNamed(srv, clients, "Bob")

	srv.handle(aliceClient, clientMessage{
		Type: "propose_trade",
		Data: raw(t, cyberTradePayload{
			To:         bob.sessionID,
			OfferTiles: []int{1},
			WantCash:   50,
		}),
	})

	// The offered tile changes hands before Bob answers.
	srv.mu.Lock()
	require.NotNil(t, g.trade)
	g.board[1].Owner = ""
	srv.mu.Unlock()

	srv.handle(bobClient, clientMessage{
		Type: "respond_trade",
		Data: raw(t, cyberRespondPayload{Accept: true}),
	})

	srv.mu.Lock()
	defer srv.mu.Unlock()
	g.timer.stop()

	assert.Equal(t, cyberStartMoney, alice.money, "a stale trade moves nothing")
	assert.Equal(t, cyberStartMoney, bob.money)
	assert.Nil(t, g.trade)
}

func TestCyberEndTurnSkipsBankrupt(t *testing.T) {
	srv, g, _ := setupCyberCity(t, "Alice", "Bob", "Carol")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	g.timer.stop()

	alice := cyberSeat(t, g, "Alice")
	bob := cyberSeat(t, g, "Bob")

	g.turnIndex = cyberIndex(g, alice)
	bob.alive = false

	g.endTurnLocked()
	g.timer.stop()

	assert.NotSame(t, bob, g.current(), "the turn never lands on a bankrupt seat")
	assert.True(t, g.current().alive)
}

func TestCyberBankruptOnOwnRollPassesTurn(t *testing.T) {
	srv, g, clients := setupCyberCity(t, "Alice", "Bob", "Carol")

	srv.mu.Lock()
	alice := cyberSeat(t, g, "Alice")
	g.turnIndex = cyberIndex(g, alice)
	g.stage = stageRoll
	alice.position = 5
	alice.money = 100

	// Every tile the dice can reach levies more than Alice holds.
	for i := 7; i <= 17; i++ {
		g.board[i] = cyberTile{Kind: tileTax, Name: "Audit", Price: 500}
	}
	srv.mu.Unlock()

	srv.handle(clientNamed(srv, clients, "Alice"), clientMessage{Type: "roll_dice"})

	srv.mu.Lock()
	defer srv.mu.Unlock()
	g.timer.stop()

	assert.False(t, alice.alive)
	require.NotNil(t, g.current())
	assert.NotSame(t, alice, g.current(), "a bankrupted roller does not keep the turn")
	assert.True(t, g.current().alive)
	assert.Equal(t, stageRoll, g.stage, "the next player moves straight to rolling")
}

func TestCyberResyncRedeliversPendingTrade(t *testing.T) {
	srv, g, clients := setupCyberCity(t, "Alice", "Bob")

	srv.mu.Lock()
	alice := cyberSeat(t, g, "Alice")
	bob := cyberSeat(t, g, "Bob")
	g.turnIndex = cyberIndex(g, alice)
	g.stage = stageManage
	g.board[1].Owner = alice.sessionID
	srv.mu.Unlock()

	aliceClient := clientNamed(srv, clients, "Alice")
	bobClient := clientNamed(srv, clients, "Bob")

	srv.handle(aliceClient, clientMessage{
		Type: "propose_trade",
		Data: raw(t, cyberTradePayload{To: bob.sessionID, OfferTiles: []int{1}}),
	})

	srv.unregister(bobClient)

	bob2 := addClient(srv)
	drain(bob2)
	srv.handle(bob2, clientMessage{Type: "join", SessionID: bob.sessionID})

	trades := 0
	for _, m := range drain(bob2) {
		if _, ok := m.(cyberTradeMessage); ok {
			trades++
		}
	}
	assert.Equal(t, 1, trades, "a pending offer follows its target across reconnects")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	g.timer.stop()
	assert.Equal(t, bob2.id, bob.connID)
}
