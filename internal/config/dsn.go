package config

import (
	"fmt"
	"net"
	neturl "net/url"
	"strconv"
	"strings"
)

// DSNValue builds a go-sql-driver/mysql DSN unless one is given verbatim.
// Fields are expected to be normalized already.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if c.DSN != "" {
		return c.DSN
	}

	params := neturl.Values{}
	for k, v := range c.Params {
		params.Set(k, v)
	}
	setDefaultParam(params, "charset", c.Charset)
	setDefaultParam(params, "parseTime", strconv.FormatBool(c.ParseTime))
	setDefaultParam(params, "loc", c.Loc)

	auth := c.User
	if c.Password != "" {
		auth += ":" + c.Password
	}
	if auth != "" {
		auth += "@"
	}

	return fmt.Sprintf("%stcp(%s)/%s?%s", auth, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), c.Name, params.Encode())
}

// URLValue builds a redis:// (or rediss://) URL accepted by redis.ParseURL.
func (c RedisRuntimeConfig) URLValue() string {
	if c.URL != "" {
		return c.URL
	}

	u := &neturl.URL{
		Scheme: c.Scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + strconv.Itoa(c.DB),
	}
	switch {
	case c.Username != "" && c.Password != "":
		u.User = neturl.UserPassword(c.Username, c.Password)
	case c.Username != "":
		u.User = neturl.User(c.Username)
	case c.Password != "":
		u.User = neturl.UserPassword("", c.Password)
	}
	if len(c.Params) > 0 {
		query := neturl.Values{}
		for k, v := range c.Params {
			query.Set(k, v)
		}
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func setDefaultParam(params neturl.Values, key, value string) {
	if params.Get(key) == "" && strings.TrimSpace(value) != "" {
		params.Set(key, value)
	}
}
