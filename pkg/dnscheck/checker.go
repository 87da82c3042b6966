// Package dnscheck verifies that published DNS records are visible to a
// recursive resolver. It issues plain queries and compares the answers
// against the addresses a reconcile pass just wrote.
package dnscheck

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// DefaultTimeout bounds a single DNS exchange.
const DefaultTimeout = 5 * time.Second

// Checker queries a single resolver for address records.
type Checker struct {
	resolverAddr string
	client       *dns.Client
	logger       *slog.Logger
}

// Option is a functional option for configuring the Checker.
type Option func(*Checker)

// WithTimeout bounds each DNS exchange.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Checker) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Checker that queries resolverAddr (host:port).
func New(resolverAddr string, opts ...Option) *Checker {
	c := &Checker{
		resolverAddr: resolverAddr,
		client: &dns.Client{
			Net:     "udp",
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Resolver returns the resolver address this checker queries.
func (c *Checker) Resolver() string {
	return c.resolverAddr
}

// Lookup queries fqdn for the given record type (dns.TypeA or dns.TypeAAAA)
// and returns every address in the answer section. An empty answer is not
// an error.
func (c *Checker) Lookup(ctx context.Context, fqdn string, qtype uint16) ([]netip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(fqdn), qtype)
	msg.RecursionDesired = true

	resp, rtt, err := c.client.ExchangeContext(ctx, msg, c.resolverAddr)
	if err != nil {
		return nil, fmt.Errorf("dns exchange with %s failed: %w", c.resolverAddr, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns query for %s returned %s", fqdn, dns.RcodeToString[resp.Rcode])
	}

	var addrs []netip.Addr
	for _, rr := range resp.Answer {
		switch record := rr.(type) {
		case *dns.A:
			if addr, ok := netip.AddrFromSlice(record.A); ok {
				addrs = append(addrs, addr.Unmap())
			}
		case *dns.AAAA:
			if addr, ok := netip.AddrFromSlice(record.AAAA); ok {
				addrs = append(addrs, addr)
			}
		}
	}

	c.logger.Debug("dns lookup complete",
		slog.String("fqdn", fqdn),
		slog.String("type", dns.TypeToString[qtype]),
		slog.Int("answers", len(addrs)),
		slog.Duration("rtt", rtt),
	)

	return addrs, nil
}

// Matches reports whether the resolver already serves addr for fqdn. The
// query type follows the address family.
func (c *Checker) Matches(ctx context.Context, fqdn string, addr netip.Addr) (bool, error) {
	qtype := uint16(dns.TypeAAAA)
	if addr.Is4() || addr.Is4In6() {
		qtype = dns.TypeA
	}

	addrs, err := c.Lookup(ctx, fqdn, qtype)
	if err != nil {
		return false, err
	}

	for _, got := range addrs {
		if got == addr.Unmap() {
			return true, nil
		}
	}
	return false, nil
}
