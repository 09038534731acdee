package mdns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressFamilyIdentity(t *testing.T) {
	v4 := ipv4Family{}
	assert.Equal(t, "ipv4", v4.Name())
	assert.Equal(t, "udp4", v4.Network())
	assert.False(t, v4.IsV6())
	assert.Equal(t, "224.0.0.251", v4.MDNSGroup().String())

	v6 := ipv6Family{}
	assert.Equal(t, "ipv6", v6.Name())
	assert.Equal(t, "udp6", v6.Network())
	assert.True(t, v6.IsV6())
	assert.Equal(t, "ff02::fb", v6.MDNSGroup().String())
}
