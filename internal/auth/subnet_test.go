package auth

import (
	"errors"
	"testing"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestSubnet_IPv4(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"127.0.0.5", "127.0.0."},
		{"203.0.113.5", "203.0.113."},
		{"203.0.113.9", "203.0.113."},
		{"10.1.2.3", "10.1.2."},
		{"255.255.255.255", "255.255.255."},
	}

	for _, tt := range tests {
		got, err := Subnet(tt.address)
		assert.NoError(t, err, tt.address)
		assert.Equal(t, tt.want, got, tt.address)
	}
}

func TestSubnet_IPv4MappedIPv6(t *testing.T) {
	got, err := Subnet("::ffff:192.0.2.5")
	assert.NoError(t, err)
	assert.Equal(t, "192.0.2.", got)
}

func TestSubnet_IPv6(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"2001:db8::1", "2001:0db8:0000:0000"},
		{"2001:db8:1:2:3:4:5:6", "2001:0db8:0001:0002"},
		{"fe80::1", "fe80:0000:0000:0000"},
	}

	for _, tt := range tests {
		got, err := Subnet(tt.address)
		assert.NoError(t, err, tt.address)
		assert.Equal(t, tt.want, got, tt.address)
	}
}

func TestSubnet_SameSubnetSameFingerprint(t *testing.T) {
	a, err := Subnet("203.0.113.5")
	assert.NoError(t, err)
	b, err := Subnet("203.0.113.250")
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSubnet_InvalidAddress(t *testing.T) {
	for _, address := range []string{"", "banana", "1.2.3", "256.1.1.1", "203.0.113.5:8080", "2001:::1"} {
		_, err := Subnet(address)
		assert.Error(t, err, address)
		assert.True(t, errors.Is(err, models.ErrInvalidAddress), address)
	}
}
