package discovery

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHost_WebSocketURL(t *testing.T) {
	h := newHost("voron", "voron.local.", 7125, nil, []net.IP{net.ParseIP("fe80::1"), net.ParseIP("192.168.1.40")})
	assert.Equal(t, "ws://192.168.1.40:7125/websocket", h.WebSocketURL())

	h = newHost("ender", "ender.local.", 80, nil, nil)
	assert.Equal(t, "ws://ender.local:80/websocket", h.WebSocketURL())

	h = newHost("v6", "", 7125, nil, []net.IP{net.ParseIP("fd00::5")})
	assert.Equal(t, "ws://[fd00::5]:7125/websocket", h.WebSocketURL())
}

func TestMergeAddresses(t *testing.T) {
	got := mergeAddresses([]string{"10.0.0.2"}, []string{"10.0.0.2", "fe80::2"})
	assert.Equal(t, []string{"10.0.0.2", "fe80::2"}, got)
}
