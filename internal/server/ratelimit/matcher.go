package ratelimit

import "strings"

// unlimited lists probe paths that are never rate limited.
var unlimited = map[string]bool{
	"/health":     true,
	"/api/health": true,
}

// MatchEndpoint returns the configuration for path and method, or nil when
// none applies. An exact path wins; otherwise the longest matching prefix
// entry (a path ending in "/") is used. Health probes match an entry with a
// zero limit, which means unlimited.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == "GET" && unlimited[path] {
		return &EndpointConfig{Path: path, Method: method}
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			if best == nil || len(c.Path) > len(best.Path) {
				best = c
			}
		}
	}
	return best
}
