package config

import "strings"

// trimDefault trims *s and falls back to def when nothing is left.
func trimDefault(s *string, def string) {
	*s = strings.TrimSpace(*s)
	if *s == "" {
		*s = def
	}
}

func (c *DatabaseRuntimeConfig) normalize() {
	c.DSN = strings.TrimSpace(c.DSN)
	trimDefault(&c.Host, defaultDBHost)
	trimDefault(&c.User, defaultDBUser)
	trimDefault(&c.Password, defaultDBPassword)
	trimDefault(&c.Name, defaultDBName)
	trimDefault(&c.Charset, defaultDBCharset)
	trimDefault(&c.Loc, defaultDBLoc)
	if c.Port == 0 {
		c.Port = defaultDBPort
	}
	c.Params = cleanParams(c.Params)
}

func (c *RedisRuntimeConfig) normalize() {
	c.URL = strings.TrimSpace(c.URL)
	if c.URL != "" && !strings.HasPrefix(c.URL, "redis://") && !strings.HasPrefix(c.URL, "rediss://") {
		c.URL = "redis://" + c.URL
	}
	c.Username = strings.TrimSpace(c.Username)
	c.Password = strings.TrimSpace(c.Password)
	trimDefault(&c.Host, defaultRedisHost)
	if c.Port == 0 {
		c.Port = defaultRedisPort
	}
	scheme := "redis"
	if c.TLS {
		scheme = "rediss"
	}
	c.Scheme = strings.ToLower(c.Scheme)
	trimDefault(&c.Scheme, scheme)
	c.Params = cleanParams(c.Params)
}

// normalizeList trims entries and drops blank ones.
func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	env = strings.ToLower(env)
	trimDefault(&env, defaultEnv)
	return env
}

// cleanParams copies a driver parameter map without blank keys or values.
func cleanParams(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		k, v := strings.TrimSpace(key), strings.TrimSpace(value)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
