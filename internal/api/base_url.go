package api

import (
	"net"
	"net/url"
	"strings"
)

// BaseURL turns a configured bind address into the URL clients dial.
// Wildcard hosts resolve to loopback. An empty bind returns nil.
func BaseURL(bind string) (*url.URL, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		if host, port, err := net.SplitHostPort(bind); err == nil {
			if host == "" || host == "0.0.0.0" || host == "::" {
				host = "127.0.0.1"
			}
			bind = net.JoinHostPort(host, port)
		}
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return base, nil
}
