// File: wsproto/permessage/negotiate.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package permessage

import (
	"strconv"
)

// Name is the registered extension token for permessage-deflate
// (RFC 7692 Section 7).
const Name = "permessage-deflate"

// Config holds the permessage-deflate parameters either side of a
// negotiation agreed to, per RFC 7692 Section 7.1.
type Config struct {
	ServerNoContextTakeover bool
	ClientNoContextTakeover bool
	ServerMaxWindowBits     int
	ClientMaxWindowBits     int
}

func defaultConfig() Config {
	return Config{ServerMaxWindowBits: 15, ClientMaxWindowBits: 15}
}

// NegotiateServer scans offers for the first permessage-deflate offer it
// can accept and returns a Session built from the agreed parameters plus
// the Extension to echo back in the response's Sec-WebSocket-Extensions
// header. It returns ok=false if no offer could be accepted, in which
// case the extension must not be used.
func NegotiateServer(offers []Extension) (session *Session, response Extension, ok bool, err error) {
	for _, offer := range offers {
		if offer.Name != Name {
			continue
		}
		cfg, respParams, accepted := acceptOffer(offer)
		if !accepted {
			continue
		}
		return newSession(true, cfg), Extension{Name: Name, Params: respParams}, true, nil
	}
	return nil, Extension{}, false, nil
}

// NegotiateClient validates the server's chosen response extension and,
// if its name is permessage-deflate and every parameter is known and in
// range, returns the Session the client side should use. It does not
// compare the response with what the client originally offered.
func NegotiateClient(response Extension) (*Session, error) {
	if response.Name != Name {
		return nil, errGrammar("unexpected extension in response")
	}
	cfg := defaultConfig()
	for _, p := range response.Params {
		if err := applyParam(&cfg, p); err != nil {
			return nil, err
		}
	}
	return newSession(false, cfg), nil
}

// acceptOffer validates a single offer's parameters and, if every
// parameter is recognized and in range, returns the negotiated Config
// and the parameter set the server should echo back.
func acceptOffer(offer Extension) (Config, []Param, bool) {
	cfg := defaultConfig()
	for _, p := range offer.Params {
		if err := applyParam(&cfg, p); err != nil {
			return Config{}, nil, false
		}
	}

	var resp []Param
	if cfg.ServerNoContextTakeover {
		resp = append(resp, Param{Key: "server_no_context_takeover"})
	}
	if cfg.ClientNoContextTakeover {
		resp = append(resp, Param{Key: "client_no_context_takeover"})
	}
	if cfg.ServerMaxWindowBits != 15 {
		resp = append(resp, Param{Key: "server_max_window_bits", Value: strconv.Itoa(cfg.ServerMaxWindowBits), HasValue: true})
	}
	if cfg.ClientMaxWindowBits != 15 {
		resp = append(resp, Param{Key: "client_max_window_bits", Value: strconv.Itoa(cfg.ClientMaxWindowBits), HasValue: true})
	}
	return cfg, resp, true
}

func applyParam(cfg *Config, p Param) error {
	switch p.Key {
	case "server_no_context_takeover":
		cfg.ServerNoContextTakeover = true
	case "client_no_context_takeover":
		cfg.ClientNoContextTakeover = true
	case "server_max_window_bits":
		bits, err := windowBits(p)
		if err != nil {
			return err
		}
		cfg.ServerMaxWindowBits = bits
	case "client_max_window_bits":
		bits, err := windowBits(p)
		if err != nil {
			return err
		}
		cfg.ClientMaxWindowBits = bits
	default:
		return errGrammar("unknown permessage-deflate parameter: " + p.Key)
	}
	return nil
}

func windowBits(p Param) (int, error) {
	if !p.HasValue {
		return 15, nil
	}
	n, err := strconv.Atoi(p.Value)
	if err != nil || n < 8 || n > 15 {
		return 0, errGrammar("max_window_bits out of range: " + p.Value)
	}
	return n, nil
}
