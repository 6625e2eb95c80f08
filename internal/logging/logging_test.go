package logging

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/parisxmas/OxiForms/internal/config"
)

func TestLevels(t *testing.T) {
	logger, closeFn, err := New(&config.Config{})
	require.NoError(t, err)
	defer closeFn()
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, closeFn2, err := New(&config.Config{Debug: true})
	require.NoError(t, err)
	defer closeFn2()
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestGELFTee(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	logger, closeFn, err := New(&config.Config{GelfAddr: conn.LocalAddr().String()})
	require.NoError(t, err)
	defer closeFn()
	logger.Info("hello")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 8192)
	var got []string
	for len(got) < 2 {
		n, _, err := conn.ReadFromUDP(buf)
		require.NoError(t, err)
		var msg struct {
			ShortMessage string `json:"short_message"`
		}
		require.NoError(t, json.Unmarshal(buf[:n], &msg))
		got = append(got, msg.ShortMessage)
	}
	assert.ElementsMatch(t, []string{"GELF logging enabled", "hello"}, got)
}
