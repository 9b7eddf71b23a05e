package permessage

import "testing"

func TestParseExtensionHeaderSingleOffer(t *testing.T) {
	exts, err := ParseExtensionHeader("permessage-deflate; client_max_window_bits")
	if err != nil {
		t.Fatal(err)
	}
	if len(exts) != 1 || exts[0].Name != "permessage-deflate" {
		t.Fatalf("got %+v", exts)
	}
	p, ok := exts[0].Get("client_max_window_bits")
	if !ok || p.HasValue {
		t.Fatalf("got %+v", p)
	}
}

func TestParseExtensionHeaderMultipleOffersWithValues(t *testing.T) {
	exts, err := ParseExtensionHeader(`permessage-deflate; server_max_window_bits=10, permessage-deflate; client_no_context_takeover`)
	if err != nil {
		t.Fatal(err)
	}
	if len(exts) != 2 {
		t.Fatalf("got %d offers", len(exts))
	}
	p, ok := exts[0].Get("server_max_window_bits")
	if !ok || !p.HasValue || p.Value != "10" {
		t.Fatalf("got %+v", p)
	}
}

func TestParseExtensionHeaderQuotedValue(t *testing.T) {
	exts, err := ParseExtensionHeader(`x-custom; token="a b"`)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := exts[0].Get("token")
	if !ok || p.Value != "a b" {
		t.Fatalf("got %+v", p)
	}
}

func TestParseExtensionHeaderRejectsEmptyToken(t *testing.T) {
	if _, err := ParseExtensionHeader("; foo=bar"); err == nil {
		t.Fatal("expected error for empty extension token")
	}
}

func TestFormatExtensionHeaderRoundTrip(t *testing.T) {
	exts := []Extension{
		{Name: "permessage-deflate", Params: []Param{
			{Key: "server_no_context_takeover"},
			{Key: "client_max_window_bits", Value: "12", HasValue: true},
		}},
	}
	formatted := FormatExtensionHeader(exts)

	reparsed, err := ParseExtensionHeader(formatted)
	if err != nil {
		t.Fatal(err)
	}
	if len(reparsed) != 1 || reparsed[0].Name != "permessage-deflate" {
		t.Fatalf("got %+v", reparsed)
	}
	p, ok := reparsed[0].Get("client_max_window_bits")
	if !ok || p.Value != "12" {
		t.Fatalf("got %+v", p)
	}
}

func TestFormatExtensionHeaderQuotesValuesNeedingIt(t *testing.T) {
	exts := []Extension{{Name: "x", Params: []Param{{Key: "k", Value: "a b", HasValue: true}}}}
	got := FormatExtensionHeader(exts)
	want := `x; k="a b"`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
