package api

import (
	"net"
	"net/http"
	"time"
)

// Timeouts bounds a single outbound call. Connect covers dialing and the TLS
// handshake; Read covers waiting for the response headers.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
}

var (
	// PointTimeouts apply to login and latest-value reads.
	PointTimeouts = Timeouts{Connect: 5 * time.Second, Read: 10 * time.Second}

	// RangeTimeouts apply to ranged series reads.
	RangeTimeouts = Timeouts{Connect: 10 * time.Second, Read: 20 * time.Second}
)

func newHTTPClient(t Timeouts) *http.Client {
	dialer := &net.Dialer{
		Timeout:   t.Connect,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   t.Connect,
		ResponseHeaderTimeout: t.Read,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   t.Connect + t.Read,
	}
}
