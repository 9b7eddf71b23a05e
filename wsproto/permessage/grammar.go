// File: wsproto/permessage/grammar.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package permessage

import (
	"strconv"
	"strings"
)

// Param is one `key` or `key=value` token within an extension offer.
// Quoted is true if Value arrived (or should be emitted) as a quoted
// string rather than a bare token.
type Param struct {
	Key      string
	Value    string
	HasValue bool
	Quoted   bool
}

// Extension is a single offer or response entry from a Sec-WebSocket-
// Extensions header: a name followed by zero or more parameters.
type Extension struct {
	Name   string
	Params []Param
}

// Get returns the first parameter named key and whether it was present.
func (e Extension) Get(key string) (Param, bool) {
	for _, p := range e.Params {
		if p.Key == key {
			return p, true
		}
	}
	return Param{}, false
}

// ParseExtensionHeader parses the grammar described in SPEC_FULL.md §6:
// comma-separated offers, each `token (; param ( = value )?)*`, where
// values may be bare tokens or quoted strings.
func ParseExtensionHeader(header string) ([]Extension, error) {
	var exts []Extension
	for _, part := range splitTop(header, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ext, err := parseExtension(part)
		if err != nil {
			return nil, err
		}
		exts = append(exts, ext)
	}
	return exts, nil
}

func parseExtension(s string) (Extension, error) {
	pieces := splitTop(s, ';')
	ext := Extension{Name: strings.TrimSpace(pieces[0])}
	if ext.Name == "" {
		return Extension{}, errGrammar("empty extension token")
	}
	for _, raw := range pieces[1:] {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		eq := strings.IndexByte(raw, '=')
		if eq < 0 {
			ext.Params = append(ext.Params, Param{Key: strings.TrimSpace(raw)})
			continue
		}
		key := strings.TrimSpace(raw[:eq])
		val := strings.TrimSpace(raw[eq+1:])
		quoted := false
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			unquoted, err := strconv.Unquote(val)
			if err != nil {
				return Extension{}, errGrammar("malformed quoted-string parameter value")
			}
			val = unquoted
			quoted = true
		}
		ext.Params = append(ext.Params, Param{Key: key, Value: val, HasValue: true, Quoted: quoted})
	}
	return ext, nil
}

// FormatExtensionHeader serializes exts back into a Sec-WebSocket-
// Extensions header value, re-quoting parameter values that were parsed
// from (or marked as needing) a quoted-string.
func FormatExtensionHeader(exts []Extension) string {
	offers := make([]string, 0, len(exts))
	for _, e := range exts {
		offers = append(offers, formatExtension(e))
	}
	return strings.Join(offers, ", ")
}

func formatExtension(e Extension) string {
	parts := []string{e.Name}
	for _, p := range e.Params {
		if !p.HasValue {
			parts = append(parts, p.Key)
			continue
		}
		v := p.Value
		if p.Quoted || needsQuoting(v) {
			v = strconv.Quote(v)
		}
		parts = append(parts, p.Key+"="+v)
	}
	return strings.Join(parts, "; ")
}

func needsQuoting(v string) bool {
	if v == "" {
		return true
	}
	for _, r := range v {
		if !isTokenRune(r) {
			return true
		}
	}
	return false
}

func isTokenRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	}
	switch r {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// splitTop splits s on sep, ignoring occurrences of sep inside a
// double-quoted substring.
func splitTop(s string, sep byte) []string {
	var out []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case sep:
			if !inQuote {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

type grammarError string

func (e grammarError) Error() string { return "permessage: " + string(e) }

func errGrammar(msg string) error { return grammarError(msg) }
