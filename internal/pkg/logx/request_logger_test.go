package logx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ipv4 with port", "203.0.113.77:51234", "203.0.113.0"},
		{"ipv4 without port", "203.0.113.77", "203.0.113.0"},
		{"loopback", "127.0.0.1:8080", "127.0.0.1"},
		{"ipv6", "[2001:db8:1:2:3:4:5:6]:443", "2001:db8:1:2::"},
		{"garbage", "not-an-address", "unknown_ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, anonymizeIP(tt.in))
		})
	}
}
