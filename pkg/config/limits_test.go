package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMatchesDocumentedDefaults(t *testing.T) {
	l := Default()
	assert.Equal(t, 56, l.ChunkPayloadBytes)
	assert.Equal(t, 2048, l.MaxPacketBytes)
	assert.Equal(t, 32, l.RXPKT)
	assert.Equal(t, 1500, l.WatchdogMS)
	assert.Equal(t, 512, l.TpipeWindowBytes)
	assert.Equal(t, 500, l.RetransmitIntervalMS)
	assert.Equal(t, 30000, l.TimeoutLimitMS)
	assert.Equal(t, 8000, l.ArpBackoffCapMS)
}
