package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

const envPrefix = "CHADSERV_"

// Config is a read-only key/value lookup loaded once at startup. Keys
// use dotted paths ("server.port"); a literal flat key wins over a
// nested walk, which matches how the config file has historically been
// written. Environment variables of the form CHADSERV_SERVER_PORT
// override the file.
type Config struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

func New() *Config {
	return &Config{values: make(map[string]interface{})}
}

// LoadFromFile reads a JSON config file. Missing file or bad JSON is an
// error; callers fall back to defaults.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not open config file %s: %w", path, err)
	}

	var values map[string]interface{}
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}

	c.mu.Lock()
	c.values = values
	c.mu.Unlock()
	return nil
}

// lookup resolves key as a flat entry first, then as a dotted path into
// nested objects.
func (c *Config) lookup(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if v, ok := c.values[key]; ok {
		return v, true
	}

	var cur interface{} = c.values
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func envOverride(key string) (string, bool) {
	name := envPrefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	return os.LookupEnv(name)
}

func (c *Config) GetString(key, defaultValue string) string {
	if v, ok := envOverride(key); ok {
		return v
	}
	if v, ok := c.lookup(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultValue
}

func (c *Config) GetInt(key string, defaultValue int) int {
	if v, ok := envOverride(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if v, ok := c.lookup(key); ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return defaultValue
}

func (c *Config) GetBool(key string, defaultValue bool) bool {
	if v, ok := envOverride(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	if v, ok := c.lookup(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultValue
}

// GetStringMap returns a string-valued object, used for the mirror
// backend access info. Non-string values are skipped.
func (c *Config) GetStringMap(key string) map[string]string {
	v, ok := c.lookup(key)
	if !ok {
		return nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}
