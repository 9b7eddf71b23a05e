package wsproto

import (
	"bytes"
	"testing"
)

func TestMaskUnmaskIsIdentity(t *testing.T) {
	key := newMaskKey()
	data := []byte("the quick brown fox jumps over the lazy dog")
	orig := append([]byte(nil), data...)

	maskBytes(data, key)
	if bytes.Equal(data, orig) {
		t.Fatal("masking did not change the data")
	}
	maskBytes(data, key)
	if !bytes.Equal(data, orig) {
		t.Fatalf("double masking did not round-trip: got %q want %q", data, orig)
	}
}

func TestNewMaskKeyVaries(t *testing.T) {
	a := newMaskKey()
	b := newMaskKey()
	if a == b {
		t.Fatal("two consecutive mask keys were identical")
	}
}
