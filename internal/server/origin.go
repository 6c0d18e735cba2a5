package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decides which Origin headers may upgrade to a WebSocket.
// Origins are compared case-insensitively on scheme and host; a configured
// "*" allows everything.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
	log      *slog.Logger
}

func newOriginPolicy(origins []string, log *slog.Logger) *originPolicy {
	p := &originPolicy{
		allowed: make(map[string]struct{}, len(origins)),
		log:     log,
	}
	for _, origin := range origins {
		if origin == "*" {
			p.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(origin)
		if !ok {
			log.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		p.allowed[normalized] = struct{}{}
	}
	return p
}

func (p *originPolicy) check(r *http.Request) bool {
	originHeader := r.Header.Get("Origin")
	if originHeader == "" {
		return false
	}
	if p.allowAll {
		return true
	}
	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}
	if _, exists := p.allowed[normalized]; exists {
		return true
	}
	p.log.Warn("blocked WebSocket connection from disallowed origin", "origin", originHeader)
	return false
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
