package ratelimit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"go.uber.org/zap"

	"github.com/AlessandraU03/stylepin-api/internal/apperror"
)

// Middleware throttles requests per client IP within scope. Backend failures
// let the request through.
func Middleware(l Limiter, scope string, ips ClientIPs, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ips.Of(r)
			d, err := l.Allow(r.Context(), scope+":"+ip)
			if err != nil {
				if logger != nil {
					logger.Warnw("rate limiter unavailable", "scope", scope, "err", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				if logger != nil {
					logger.Infow("rate limited", "scope", scope, "ip", ip, "count", d.Count)
				}
				apperror.Write(w, r, logger, apperror.RateLimited(d.RetryAt))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIPs derives the throttle key from a request. X-Forwarded-For is only
// read when the connecting peer is one of the Trusted proxies; the zero value
// always uses the connection address.
type ClientIPs struct {
	Trusted []netip.Prefix
}

// Of returns the client address. Behind trusted proxies it is the rightmost
// forwarded hop that is not itself a trusted proxy.
func (c ClientIPs) Of(r *http.Request) string {
	peer, ok := remoteAddr(r.RemoteAddr)
	if !ok {
		return r.RemoteAddr
	}
	if !c.trusted(peer) {
		return peer.String()
	}
	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}
	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		client = hop.Unmap()
		if !c.trusted(client) {
			break
		}
	}
	return client.String()
}

func (c ClientIPs) trusted(a netip.Addr) bool {
	for _, p := range c.Trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func remoteAddr(s string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(s)
	if err != nil {
		host = s
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

// ParsePrefixes reads a comma separated list of CIDRs or bare addresses.
func ParsePrefixes(list string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, err
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}
