package app

import (
	"net"
	"net/http"
	"time"
)

// upstreamBackstop ends a campaign fetch that outlives every per-request
// deadline, such as a body trickling in after the headers arrived.
const upstreamBackstop = 60 * time.Second

// newUpstreamHTTPClient builds the client for the campaign host. The site
// talks to one host, at most a few requests at a time, and the response
// cache keeps most snapshots off the network, so the pool is small and
// connections are capped per host rather than tuned for fan-out.
func newUpstreamHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   2,
		MaxConnsPerHost:       4,
		IdleConnTimeout:       2 * time.Minute,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport, Timeout: upstreamBackstop}
}
