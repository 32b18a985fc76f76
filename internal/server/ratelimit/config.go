package ratelimit

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // exact path, or a prefix when it ends in "/"
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// IPSet is a list of client addresses and networks.
type IPSet []netip.Prefix

// ParseIPSet parses a comma-separated list of IP addresses or CIDR prefixes.
// Blank entries are skipped.
func ParseIPSet(list string) (IPSet, error) {
	var set IPSet
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			prefix, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, err
			}
			set = append(set, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, err
		}
		set = append(set, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return set, nil
}

// Contains reports whether clientID is an address inside the set. Client IDs
// that are not IP addresses never match.
func (s IPSet) Contains(clientID string) bool {
	if len(s) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(clientID)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range s {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// LoadConfig reads the RATE_LIMIT_* environment variables. Unset variables
// take their defaults; malformed values are reported.
func LoadConfig() (*Config, error) {
	var e envReader

	cfg := &Config{
		Enabled:         e.boolean("RATE_LIMIT_ENABLED", true),
		DefaultLimit:    e.integer("RATE_LIMIT_DEFAULT_LIMIT", 1000),
		DefaultWindow:   e.duration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: e.duration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		IdleTTL:         e.duration("RATE_LIMIT_IDLE_TTL", time.Hour),
		Whitelist:       e.ipSet("RATE_LIMIT_WHITELIST"),
		Blacklist:       e.ipSet("RATE_LIMIT_BLACKLIST"),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
	if e.err != nil {
		return nil, fmt.Errorf("rate limit config: %w", e.err)
	}
	if !cfg.Enabled {
		return &Config{Enabled: false}, nil
	}
	return cfg, nil
}

func perMinute(method, path string, limit, burst int) EndpointConfig {
	return EndpointConfig{Path: path, Method: method, Limit: limit, Window: time.Minute, Burst: burst}
}

// DefaultEndpointConfigs returns the endpoint limits. Routes that cost an
// upstream call are limited hardest; anything else falls back to the default.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		perMinute("POST", "/api/voice-token", 30, 5),
		perMinute("GET", "/session", 30, 5),
		perMinute("POST", "/session", 30, 5),
		perMinute("POST", "/api/tts", 30, 5),
		perMinute("GET", "/api/conversation", 10, 3),
		perMinute("POST", "/api/search-candidates", 60, 10),
		perMinute("GET", "/api/bullhorn/", 60, 10),
	}
}

// envReader parses environment values and keeps every failure.
type envReader struct {
	err error
}

func (r *envReader) fail(key, value string, err error) {
	r.err = errors.Join(r.err, fmt.Errorf("invalid %s %q: %w", key, value, err))
}

func (r *envReader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *envReader) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return b
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func (r *envReader) ipSet(key string) IPSet {
	v := os.Getenv(key)
	set, err := ParseIPSet(v)
	if err != nil {
		r.fail(key, v, err)
		return nil
	}
	return set
}
