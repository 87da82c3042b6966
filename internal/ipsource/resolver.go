// Package ipsource discovers the host's current public IPv4 and IPv6
// addresses by querying external plain-text lookup services.
package ipsource

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

// DefaultLookupTimeout bounds each individual service lookup.
const DefaultLookupTimeout = 30 * time.Second

// Default lookup services, tried in order. Each returns the caller's
// address as the first line of a plain-text 200 response and answers only
// over one address family.
var (
	DefaultIPv4Services = []string{
		"https://api.ipify.org",
		"https://ipv4.icanhazip.com",
		"https://v4.ident.me",
	}

	DefaultIPv6Services = []string{
		"https://api64.ipify.org",
		"https://ipv6.icanhazip.com",
		"https://v6.ident.me",
	}
)

// Resolver looks up the host's public addresses, one family at a time.
//
// Resolve never returns an error: a family whose services are all
// unreachable simply comes back as the zero netip.Addr. Deciding what a
// double miss means is the caller's job.
type Resolver struct {
	httpClient *http.Client
	v4Services []string
	v6Services []string
	timeout    time.Duration
	logger     *slog.Logger
}

// Option is a functional option for configuring the Resolver.
type Option func(*Resolver)

// WithServices overrides the per-family service lists. Empty slices keep
// the defaults.
func WithServices(ipv4, ipv6 []string) Option {
	return func(r *Resolver) {
		if len(ipv4) > 0 {
			r.v4Services = ipv4
		}
		if len(ipv6) > 0 {
			r.v6Services = ipv6
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(r *Resolver) {
		if httpClient != nil {
			r.httpClient = httpClient
		}
	}
}

// WithLookupTimeout bounds each individual service lookup.
func WithLookupTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Resolver with the default service lists.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		httpClient: http.DefaultClient,
		v4Services: DefaultIPv4Services,
		v6Services: DefaultIPv6Services,
		timeout:    DefaultLookupTimeout,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve returns the current public IPv4 and IPv6 addresses. Either may be
// the zero netip.Addr when no service for that family produced a usable
// answer; every per-service failure is logged at warn level and absorbed.
func (r *Resolver) Resolve(ctx context.Context) (ipv4, ipv6 netip.Addr) {
	ipv4 = r.resolveFamily(ctx, "ipv4", r.v4Services)
	ipv6 = r.resolveFamily(ctx, "ipv6", r.v6Services)
	return ipv4, ipv6
}

// resolveFamily tries each service in order and returns the first address
// of the wanted family. Exhausting the list returns the zero netip.Addr.
func (r *Resolver) resolveFamily(ctx context.Context, family string, services []string) netip.Addr {
	for _, service := range services {
		addr, err := r.lookup(ctx, service)
		if err != nil {
			r.logger.Warn("public IP lookup failed",
				slog.String("family", family),
				slog.String("service", service),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !familyMatches(family, addr) {
			r.logger.Warn("public IP lookup returned wrong address family",
				slog.String("family", family),
				slog.String("service", service),
				slog.String("address", addr.String()),
			)
			continue
		}

		r.logger.Debug("resolved public IP",
			slog.String("family", family),
			slog.String("service", service),
			slog.String("address", addr.String()),
		)
		return addr
	}

	r.logger.Warn("no lookup service produced an address",
		slog.String("family", family),
		slog.Int("services", len(services)),
	)
	return netip.Addr{}
}

// lookup fetches one service and parses the first line of the body as an
// IP address. The per-lookup deadline holds even when the caller supplied
// context.Background and the shared client has no timeout of its own.
func (r *Resolver) lookup(ctx context.Context, serviceURL string) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	line, _ := bufio.NewReader(resp.Body).ReadString('\n')
	addr, err := netip.ParseAddr(strings.TrimSpace(line))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parsing IP address from response body: %w", err)
	}
	return addr, nil
}

func familyMatches(family string, addr netip.Addr) bool {
	if family == "ipv4" {
		return addr.Is4() || addr.Is4In6()
	}
	return addr.Is6() && !addr.Is4In6()
}
