package permessage

import (
	"bytes"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	session, _, ok, err := NegotiateServer([]Extension{{Name: Name}})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}

	data := bytes.Repeat([]byte("hello world "), 50)
	compressed, err := session.Compress(data)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.HasSuffix(compressed, deflateTrailer) {
		t.Fatal("Compress did not strip the sync-flush trailer")
	}

	got, err := session.Decompress(compressed, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(data))
	}
}

func TestCompressDecompressContextTakeoverAcrossMessages(t *testing.T) {
	server, _, ok, err := NegotiateServer([]Extension{{Name: Name}})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}

	msgs := [][]byte{[]byte("the quick brown fox"), []byte("the quick brown fox jumps")}
	var withTakeoverSize int
	for i, m := range msgs {
		compressed, err := server.Compress(m)
		if err != nil {
			t.Fatal(err)
		}
		if i == 1 {
			withTakeoverSize = len(compressed)
		}
		got, err := server.Decompress(compressed, 0)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, m) {
			t.Fatalf("got %q want %q", got, m)
		}
	}

	// The second message repeats almost all of the first message's bytes.
	// A genuinely carried-over sliding window lets the compressor reference
	// that repeat, so compressing it after the first message must shrink it
	// below what an independent session (no prior window) achieves; a
	// window silently reset every message, as flate.Resetter.Reset(r, nil)
	// does, would instead leave the two sizes equal.
	fresh, _, ok, err := NegotiateServer([]Extension{{Name: Name}})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	independentSize := -1
	if compressed, err := fresh.Compress(msgs[1]); err == nil {
		independentSize = len(compressed)
	} else {
		t.Fatal(err)
	}
	if withTakeoverSize >= independentSize {
		t.Fatalf("context takeover did not shrink second message: with-takeover=%d independent=%d", withTakeoverSize, independentSize)
	}
}

func TestDecompressEnforcesMaxPayload(t *testing.T) {
	session, _, ok, err := NegotiateServer([]Extension{{Name: Name}})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}

	data := bytes.Repeat([]byte{0x41}, 1000)
	compressed, err := session.Compress(data)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := session.Decompress(compressed, 10); err != ErrTooLarge {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}
}

func TestNoContextTakeoverResetsEachMessage(t *testing.T) {
	offers := []Extension{{Name: Name, Params: []Param{
		{Key: "server_no_context_takeover"},
		{Key: "client_no_context_takeover"},
	}}}
	session, _, ok, err := NegotiateServer(offers)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}

	data := []byte("repeat me please")
	c1, err := session.Compress(data)
	if err != nil {
		t.Fatal(err)
	}
	got, err := session.Decompress(c1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q want %q", got, data)
	}
}
