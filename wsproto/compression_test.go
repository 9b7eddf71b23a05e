package wsproto

import (
	"bytes"
	"testing"

	"github.com/coreproto/wscore/wsproto/permessage"
)

func TestSenderReceiverCompressedRoundTrip(t *testing.T) {
	serverExt, resp, ok, err := permessage.NegotiateServer([]permessage.Extension{{Name: permessage.Name}})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	clientExt, err := permessage.NegotiateClient(resp)
	if err != nil {
		t.Fatal(err)
	}

	var sink bytes.Buffer
	sender := NewSender(&sink, RoleClient, clientExt)
	sender.CompressionThreshold = 1

	data := bytes.Repeat([]byte("compress me please "), 20)
	if err := sender.Send(OpText, data); err != nil {
		t.Fatal(err)
	}

	frameBytes := sink.Bytes()
	if frameBytes[0]&0x40 == 0 {
		t.Fatal("expected RSV1 to be set on a compressed frame")
	}

	lis := &recordingListener{}
	r := NewReceiver(RoleServer, 0, serverExt, lis)
	r.Add(frameBytes)

	if len(lis.text) != 1 || !bytes.Equal(lis.text[0], data) {
		t.Fatalf("got text=%v errs=%v", lis.text, lis.errs)
	}
}

func TestSenderStreamNeverCompresses(t *testing.T) {
	serverExt, resp, ok, err := permessage.NegotiateServer([]permessage.Extension{{Name: permessage.Name}})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	clientExt, err := permessage.NegotiateClient(resp)
	if err != nil {
		t.Fatal(err)
	}

	var sink bytes.Buffer
	sender := NewSender(&sink, RoleClient, clientExt)
	sender.CompressionThreshold = 1

	data := bytes.Repeat([]byte("stream me please "), 20)
	if err := sender.StreamStart(OpText, data[:50]); err != nil {
		t.Fatal(err)
	}
	if err := sender.StreamEnd(data[50:]); err != nil {
		t.Fatal(err)
	}

	frameBytes := sink.Bytes()
	if frameBytes[0]&0x40 != 0 {
		t.Fatal("RSV1 must never be set on a streamed fragment, even with an extension negotiated")
	}

	lis := &recordingListener{}
	r := NewReceiver(RoleServer, 0, serverExt, lis)
	r.Add(frameBytes)

	if len(lis.text) != 1 || !bytes.Equal(lis.text[0], data) {
		t.Fatalf("got text=%v errs=%v", lis.text, lis.errs)
	}
}

func TestReceiverRejectsCompressedFrameWithoutExtension(t *testing.T) {
	serverExt, resp, ok, err := permessage.NegotiateServer([]permessage.Extension{{Name: permessage.Name}})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	clientExt, err := permessage.NegotiateClient(resp)
	if err != nil {
		t.Fatal(err)
	}

	var sink bytes.Buffer
	sender := NewSender(&sink, RoleClient, clientExt)
	sender.CompressionThreshold = 1
	if err := sender.Send(OpText, bytes.Repeat([]byte("x"), 50)); err != nil {
		t.Fatal(err)
	}

	lis := &recordingListener{}
	r := NewReceiver(RoleServer, 0, nil, lis) // no extension negotiated on this receiver
	r.Add(sink.Bytes())

	if len(lis.errs) != 1 || lis.errs[0].Kind != ErrKindReservedBits {
		t.Fatalf("got errs=%v", lis.errs)
	}
	_ = serverExt
}
