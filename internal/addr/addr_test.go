package addr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFormatRoundTrip(t *testing.T) {
	tests := []string{"1.1.1.1", "255.255.255.255", "0.0.0.0", "10.0.0.1", "192.168.1.254"}
	for _, s := range tests {
		n, err := Parse(s)
		require.NoError(t, err)
		require.Equal(t, s, Format(n))
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("not-an-ip")
	require.Error(t, err)
}

func TestMask(t *testing.T) {
	tests := []struct {
		bits int
		want uint32
	}{
		{0, 0x00000000},
		{8, 0xFF000000},
		{24, 0xFFFFFF00},
		{32, 0xFFFFFFFF},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Mask(tt.bits))
	}
}

func TestContainsAgreesWithCIDR(t *testing.T) {
	tests := []struct {
		net     string
		masklen int
		host    string
		want    bool
	}{
		{"3.3.3.0", 30, "3.3.3.3", true},
		{"3.3.3.0", 30, "3.3.3.5", false},
		{"10.0.0.0", 8, "10.255.255.255", true},
		{"10.0.0.0", 8, "11.0.0.1", false},
		{"1.1.1.1", 32, "1.1.1.1", true},
		{"0.0.0.0", 0, "200.1.2.3", true},
	}
	for _, tt := range tests {
		netAddr, err := Parse(tt.net)
		require.NoError(t, err)
		host, err := Parse(tt.host)
		require.NoError(t, err)

		got := Contains(netAddr, tt.masklen, host)
		require.Equal(t, tt.want, got, "Contains(%s/%d, %s)", tt.net, tt.masklen, tt.host)

		cidr := CIDR(netAddr, tt.masklen)
		gotCIDR, err := ContainsCIDR(cidr, host)
		require.NoError(t, err)
		require.Equal(t, tt.want, gotCIDR, "ContainsCIDR(%s, %s)", cidr, tt.host)
	}
}

func TestParseCIDR(t *testing.T) {
	a, m, err := ParseCIDR("3.3.3.0/30")
	require.NoError(t, err)
	require.Equal(t, 30, m)
	require.Equal(t, "3.3.3.0", Format(a))

	_, _, err = ParseCIDR("3.3.3.0/99")
	require.Error(t, err)

	_, _, err = ParseCIDR("not-a-cidr")
	require.Error(t, err)
}
