package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		bind:         "127.0.0.1",
		discussTime:  5 * time.Second,
		port:         8080,
		revealDelay:  5 * time.Second,
		rounds:       3,
		turnTimeout:  5 * time.Second,
		voteTimeout:  5 * time.Second,
		writeTimeout: 5 * time.Second,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	srv := newServer(testConfig())

	t.Cleanup(func() {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		if srv.active != nil {
			srv.active.halt()
		}
	})

	return srv
}

// addClient registers a fake connection; messages pile up in the send
// buffer instead of going over a websocket.
func addClient(srv *Server) *Client {
	c := &Client{
		id:   uuid.NewString(),
		send: make(chan any, 256),
	}
	srv.register(c)
	return c
}

func addTV(srv *Server) *Client {
	tv := addClient(srv)
	srv.handle(tv, clientMessage{Type: "register_tv"})
	return tv
}

func joinPlayer(t *testing.T, srv *Server, c *Client, name string) *PlayerIdentity {
	t.Helper()

	srv.handle(c, clientMessage{Type: "join", Name: name})

	srv.mu.Lock()
	defer srv.mu.Unlock()

	p := srv.directory.byConnection(c.id)
	require.NotNil(t, p, "join for %q should have registered an identity", name)
	return p
}

func clientNamed(srv *Server, clients []*Client, name string) *Client {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	for _, c := range clients {
		if p := srv.directory.byConnection(c.id); p != nil && p.Name == name {
			return c
		}
	}
	return nil
}

func drain(c *Client) []any {
	var msgs []any
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return msgs
			}
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func lastView(msgs []any) string {
	view := ""
	for _, m := range msgs {
		if vm, ok := m.(viewMessage); ok {
			view = vm.View
		}
	}
	return view
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
