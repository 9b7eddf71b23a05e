package wsproto

import "testing"

func TestValidFromPeer(t *testing.T) {
	cases := []struct {
		code CloseCode
		want bool
	}{
		{CloseNormalClosure, true},
		{CloseGoingAway, true},
		{CloseNoStatusRcvd, false},
		{CloseAbnormal, false},
		{1004, false},
		{3000, true},
		{4999, true},
		{5000, false},
	}
	for _, c := range cases {
		if got := validFromPeer(c.code); got != c.want {
			t.Errorf("validFromPeer(%d) = %v, want %v", c.code, got, c.want)
		}
	}
}
