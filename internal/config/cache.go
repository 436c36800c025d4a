package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache in front of the
// resource proxy.  Methods lists the HTTP methods to cache; KeyStrategy
// picks which parts of the request feed the cache key.
type CacheConfig struct {
	Enabled      bool          `env:"ENABLED" envDefault:"true"`
	Methods      []string      `env:"METHODS" envDefault:"GET" envSeparator:","`
	TTL          time.Duration `env:"TTL" envDefault:"30s"`
	KeyStrategy  string        `env:"KEY_STRATEGY" envDefault:"path_query"`
	Prefix       string        `env:"PREFIX" envDefault:"cache"`
	MaxBodyBytes int           `env:"MAX_BODY_BYTES" envDefault:"1048576"`
}

// Caches reports whether responses to method are cached.
func (c CacheConfig) Caches(method string) bool {
	for _, m := range c.Methods {
		if m == strings.ToUpper(method) {
			return true
		}
	}
	return false
}

func (c *CacheConfig) normalize() {
	out := c.Methods[:0]
	for _, m := range c.Methods {
		if m = strings.TrimSpace(strings.ToUpper(m)); m != "" {
			out = append(out, m)
		}
	}
	c.Methods = out
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
}
