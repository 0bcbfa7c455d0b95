package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	assert.NoError(t, cfg.validate())

	cfg = testConfig()
	cfg.port = 0
	assert.Error(t, cfg.validate())

	cfg = testConfig()
	cfg.port = 70000
	assert.Error(t, cfg.validate())

	cfg = testConfig()
	cfg.rounds = 0
	assert.Error(t, cfg.validate())

	cfg = testConfig()
	cfg.tlsCert = "/tmp/cert.pem"
	assert.Error(t, cfg.validate(), "a certificate without a key is rejected")

	cfg.tlsKey = "/tmp/key.pem"
	assert.NoError(t, cfg.validate())
	assert.Equal(t, "https", cfg.scheme())

	cfg = testConfig()
	assert.Equal(t, "http", cfg.scheme())
}
