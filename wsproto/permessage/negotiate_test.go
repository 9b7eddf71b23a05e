package permessage

import "testing"

func TestNegotiateServerAcceptsPlainOffer(t *testing.T) {
	offers := []Extension{{Name: Name}}
	session, resp, ok, err := NegotiateServer(offers)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || session == nil {
		t.Fatal("expected offer to be accepted")
	}
	if resp.Name != Name || len(resp.Params) != 0 {
		t.Fatalf("got %+v", resp)
	}
}

func TestNegotiateServerEchoesNonDefaultParams(t *testing.T) {
	offers := []Extension{{Name: Name, Params: []Param{
		{Key: "client_no_context_takeover"},
		{Key: "server_max_window_bits", Value: "10", HasValue: true},
	}}}
	session, resp, ok, err := NegotiateServer(offers)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if _, present := resp.Get("client_no_context_takeover"); !present {
		t.Fatalf("got %+v", resp)
	}
	p, present := resp.Get("server_max_window_bits")
	if !present || p.Value != "10" {
		t.Fatalf("got %+v", resp)
	}
	_ = session
}

func TestNegotiateServerRejectsUnknownParam(t *testing.T) {
	offers := []Extension{{Name: Name, Params: []Param{{Key: "bogus"}}}}
	_, _, ok, err := NegotiateServer(offers)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected offer with unknown parameter to be rejected")
	}
}

func TestNegotiateServerRejectsOutOfRangeWindowBits(t *testing.T) {
	offers := []Extension{{Name: Name, Params: []Param{
		{Key: "server_max_window_bits", Value: "20", HasValue: true},
	}}}
	_, _, ok, err := NegotiateServer(offers)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected out-of-range window bits to be rejected")
	}
}

func TestNegotiateServerSkipsNonMatchingExtension(t *testing.T) {
	offers := []Extension{{Name: "x-other"}}
	_, _, ok, err := NegotiateServer(offers)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no offer to be accepted")
	}
}

func TestNegotiateClientAcceptsResponse(t *testing.T) {
	resp := Extension{Name: Name, Params: []Param{{Key: "server_no_context_takeover"}}}
	session, err := NegotiateClient(resp)
	if err != nil {
		t.Fatal(err)
	}
	if session == nil {
		t.Fatal("expected a session")
	}
}

func TestNegotiateClientRejectsWrongExtensionName(t *testing.T) {
	if _, err := NegotiateClient(Extension{Name: "x-other"}); err == nil {
		t.Fatal("expected error")
	}
}
