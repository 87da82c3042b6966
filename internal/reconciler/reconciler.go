package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"gitlab.bluewillows.net/root/ipweaver/internal/metrics"
	"gitlab.bluewillows.net/root/ipweaver/pkg/provider"
)

// AddressResolver discovers the host's current public addresses. Either
// return value may be the zero netip.Addr when that family is unavailable.
type AddressResolver interface {
	Resolve(ctx context.Context) (ipv4, ipv6 netip.Addr)
}

// PropagationChecker verifies that a resolver already serves the address a
// reconcile pass just wrote.
type PropagationChecker interface {
	Matches(ctx context.Context, fqdn string, addr netip.Addr) (bool, error)
}

// Config holds reconciler configuration options.
type Config struct {
	// Domain is the zone the managed record lives in, e.g. example.com.
	Domain string

	// Subdomain is the record label within the zone, e.g. home.
	Subdomain string

	// TTL applied to every created and updated record.
	TTL int

	// Interval between reconcile cycles in Run.
	Interval time.Duration

	// DryRun if true, logs changes without applying them.
	DryRun bool
}

// DefaultConfig returns a Config with sensible defaults. Domain and
// Subdomain have no defaults and must be set.
func DefaultConfig() Config {
	return Config{
		TTL:      600,
		Interval: 600 * time.Second,
	}
}

// Reconciler keeps one subdomain's A and AAAA records pointed at the
// host's public addresses.
//
// Each cycle:
//  1. Discovers the current public IPv4 and IPv6 addresses
//  2. Updates the record for each reachable family, using cached record IDs
//  3. Creates records for families whose ID is not cached
//
// Record IDs are looked up once at startup and then carried across cycles;
// an update rejected by the API drops the cached ID so the next cycle
// recreates the record.
type Reconciler struct {
	provider provider.Provider
	resolver AddressResolver
	checker  PropagationChecker
	config   Config
	logger   *slog.Logger

	// mu protects zoneID and recordIDs across Run and on-demand cycles.
	mu        sync.Mutex
	zoneID    string
	recordIDs map[provider.RecordType]string
}

// Option is a functional option for configuring the Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger for the reconciler.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithConfig sets the reconciler configuration.
func WithConfig(cfg Config) Option {
	return func(r *Reconciler) {
		r.config = cfg
	}
}

// WithChecker enables post-write propagation probes against a resolver.
func WithChecker(checker PropagationChecker) Option {
	return func(r *Reconciler) {
		r.checker = checker
	}
}

// New creates a Reconciler for the given provider and address resolver.
func New(p provider.Provider, resolver AddressResolver, opts ...Option) *Reconciler {
	r := &Reconciler{
		provider:  p,
		resolver:  resolver,
		config:    DefaultConfig(),
		logger:    slog.Default(),
		recordIDs: make(map[provider.RecordType]string),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// FQDN returns the fully qualified name of the managed record.
func (r *Reconciler) FQDN() string {
	return r.config.Subdomain + "." + r.config.Domain
}

// RecordID returns the cached record ID for a type, if one is held.
func (r *Reconciler) RecordID(recordType provider.RecordType) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.recordIDs[recordType]
	return id, ok
}

// MissingFamilies lists the record types with no cached record ID. Used by
// the readiness endpoint to report a degraded (single-family) state.
func (r *Reconciler) MissingFamilies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var missing []string
	for _, t := range []provider.RecordType{provider.RecordTypeA, provider.RecordTypeAAAA} {
		if _, ok := r.recordIDs[t]; !ok {
			missing = append(missing, string(t))
		}
	}
	return missing
}

// Start performs the initial pass: discover addresses, resolve the zone,
// and locate or create the record for each reachable family. It returns an
// error when the daemon cannot do useful work: no address on either
// family, an unresolvable zone, or no record ID held afterwards.
func (r *Reconciler) Start(ctx context.Context) error {
	ipv4, ipv6 := r.discover(ctx)
	if !ipv4.IsValid() && !ipv6.IsValid() {
		return fmt.Errorf("no public address discovered on either family")
	}

	zoneID, err := r.provider.ZoneID(ctx, r.config.Domain)
	observeAPI("zone_id", err)
	if err != nil {
		return fmt.Errorf("resolving zone %s: %w", r.config.Domain, err)
	}

	r.mu.Lock()
	r.zoneID = zoneID
	r.mu.Unlock()

	r.logger.Info("zone resolved",
		slog.String("domain", r.config.Domain),
		slog.String("zone_id", zoneID),
	)

	for _, target := range []struct {
		recordType provider.RecordType
		addr       netip.Addr
	}{
		{provider.RecordTypeA, ipv4},
		{provider.RecordTypeAAAA, ipv6},
	} {
		if !target.addr.IsValid() {
			r.logger.Warn("address family unavailable, record not managed",
				slog.String("type", string(target.recordType)),
			)
			continue
		}
		r.locateOrCreate(ctx, zoneID, target.recordType, target.addr)
	}

	if r.config.DryRun {
		return nil
	}

	r.mu.Lock()
	held := len(r.recordIDs)
	r.mu.Unlock()
	if held == 0 {
		return fmt.Errorf("no record ID held for %s after initial pass", r.FQDN())
	}

	return nil
}

// locateOrCreate finds the existing record for a family or creates one.
func (r *Reconciler) locateOrCreate(ctx context.Context, zoneID string, recordType provider.RecordType, addr netip.Addr) {
	id, err := r.provider.FindRecord(ctx, zoneID, r.FQDN(), recordType)
	if provider.IsNotFound(err) {
		observeAPI("find_record", nil)
	} else {
		observeAPI("find_record", err)
	}
	switch {
	case err == nil:
		r.logger.Info("existing record found",
			slog.String("type", string(recordType)),
			slog.String("record_id", id),
		)
		r.setRecordID(recordType, id)
		return
	case !provider.IsNotFound(err):
		r.logger.Error("record lookup failed",
			slog.String("type", string(recordType)),
			slog.String("error", err.Error()),
		)
		return
	}

	if r.config.DryRun {
		r.logger.Info("would create record",
			slog.String("type", string(recordType)),
			slog.String("content", addr.String()),
		)
		return
	}

	record := r.recordFor(recordType, addr)
	id, err = r.provider.CreateRecord(ctx, zoneID, record)
	observeAPI("create_record", err)
	if err != nil {
		r.logger.Error("record creation failed",
			slog.String("type", string(recordType)),
			slog.String("error", err.Error()),
		)
		metrics.RecordsFailedTotal.WithLabelValues(string(recordType), "create").Inc()
		return
	}

	r.logger.Info("record created",
		slog.String("type", string(recordType)),
		slog.String("record_id", id),
		slog.String("content", addr.String()),
	)
	metrics.RecordsCreatedTotal.WithLabelValues(string(recordType)).Inc()
	r.setRecordID(recordType, id)
	r.verify(ctx, addr)
}

// Reconcile performs one steady-state cycle. It never terminates the
// daemon: API failures are reported through the result and metrics, and
// the cycle returns a non-nil error only when the cycle itself could not
// run at all.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	result := NewResult(r.config.DryRun)
	defer func() {
		result.Complete()
		metrics.CycleDuration.Observe(result.Duration().Seconds())
	}()

	ipv4, ipv6 := r.discover(ctx)
	if ipv4.IsValid() {
		result.IPv4 = ipv4.String()
	}
	if ipv6.IsValid() {
		result.IPv6 = ipv6.String()
	}

	if !ipv4.IsValid() && !ipv6.IsValid() {
		r.logger.Warn("no public address discovered, skipping cycle")
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return result, nil
	}

	r.mu.Lock()
	zoneID := r.zoneID
	r.mu.Unlock()
	if zoneID == "" {
		return result, fmt.Errorf("no zone resolved, Start must run first")
	}

	for _, target := range []struct {
		recordType provider.RecordType
		addr       netip.Addr
	}{
		{provider.RecordTypeA, ipv4},
		{provider.RecordTypeAAAA, ipv6},
	} {
		if !target.addr.IsValid() {
			result.AddAction(Action{
				Type:       ActionSkip,
				Status:     StatusSkipped,
				RecordType: string(target.recordType),
			})
			continue
		}
		r.syncRecord(ctx, zoneID, target.recordType, target.addr, result)
	}

	outcome := "success"
	if result.HasErrors() {
		outcome = "error"
	}

	// With at least one address in hand the daemon must be maintaining at
	// least one record. Losing every cached ID mid-flight is an error state
	// worth surfacing, but not worth exiting over: the next cycle retries
	// creation.
	if !r.config.DryRun {
		r.mu.Lock()
		held := len(r.recordIDs)
		r.mu.Unlock()
		if held == 0 {
			r.logger.Error("no record ID held for any family after cycle",
				slog.String("fqdn", r.FQDN()),
			)
			outcome = "error"
		}
	}

	metrics.CyclesTotal.WithLabelValues(outcome).Inc()
	return result, nil
}

// syncRecord brings one family's record in line with the discovered
// address. A held record ID means update; otherwise create. Updates are
// sent even when the address has not changed, which keeps the record's TTL
// and proxy settings authoritative.
func (r *Reconciler) syncRecord(ctx context.Context, zoneID string, recordType provider.RecordType, addr netip.Addr, result *Result) {
	record := r.recordFor(recordType, addr)
	recordID, held := r.RecordID(recordType)

	if r.config.DryRun {
		action := ActionCreate
		if held {
			action = ActionUpdate
		}
		r.logger.Info("would sync record",
			slog.String("action", string(action)),
			slog.String("type", string(recordType)),
			slog.String("content", addr.String()),
		)
		result.AddAction(Action{
			Type:       action,
			Status:     StatusSuccess,
			RecordType: string(recordType),
			Target:     addr.String(),
			RecordID:   recordID,
		})
		return
	}

	if held {
		newID, err := r.provider.UpdateRecord(ctx, zoneID, recordID, record)
		observeAPI("update_record", err)
		if err != nil {
			r.logger.Error("record update failed",
				slog.String("type", string(recordType)),
				slog.String("record_id", recordID),
				slog.String("error", err.Error()),
			)
			metrics.RecordsFailedTotal.WithLabelValues(string(recordType), "update").Inc()
			result.AddAction(Action{
				Type:       ActionUpdate,
				Status:     StatusFailed,
				RecordType: string(recordType),
				Target:     addr.String(),
				RecordID:   recordID,
				Error:      err.Error(),
			})

			// A rejected update means the cached ID may be stale, so drop
			// it and let the next cycle recreate the record. Transport
			// failures and rate limits keep the ID: the record most likely
			// still exists.
			if !provider.KeepsRecordID(err) {
				r.logger.Warn("dropping cached record ID",
					slog.String("type", string(recordType)),
					slog.String("record_id", recordID),
				)
				r.clearRecordID(recordType)
			}
			return
		}

		r.logger.Debug("record updated",
			slog.String("type", string(recordType)),
			slog.String("record_id", newID),
			slog.String("content", addr.String()),
		)
		metrics.RecordsUpdatedTotal.WithLabelValues(string(recordType)).Inc()
		r.setRecordID(recordType, newID)
		result.AddAction(Action{
			Type:       ActionUpdate,
			Status:     StatusSuccess,
			RecordType: string(recordType),
			Target:     addr.String(),
			RecordID:   newID,
		})
		r.verify(ctx, addr)
		return
	}

	newID, err := r.provider.CreateRecord(ctx, zoneID, record)
	observeAPI("create_record", err)
	if err != nil {
		r.logger.Error("record creation failed",
			slog.String("type", string(recordType)),
			slog.String("error", err.Error()),
		)
		metrics.RecordsFailedTotal.WithLabelValues(string(recordType), "create").Inc()
		result.AddAction(Action{
			Type:       ActionCreate,
			Status:     StatusFailed,
			RecordType: string(recordType),
			Target:     addr.String(),
			Error:      err.Error(),
		})
		return
	}

	r.logger.Info("record created",
		slog.String("type", string(recordType)),
		slog.String("record_id", newID),
		slog.String("content", addr.String()),
	)
	metrics.RecordsCreatedTotal.WithLabelValues(string(recordType)).Inc()
	r.setRecordID(recordType, newID)
	result.AddAction(Action{
		Type:       ActionCreate,
		Status:     StatusSuccess,
		RecordType: string(recordType),
		Target:     addr.String(),
		RecordID:   newID,
	})
	r.verify(ctx, addr)
}

// Run performs the initial pass and then reconciles on a fixed interval
// until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}

	r.logger.Info("reconcile loop starting",
		slog.String("fqdn", r.FQDN()),
		slog.Duration("interval", r.config.Interval),
		slog.Bool("dry_run", r.config.DryRun),
	)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconcile loop stopping")
			return ctx.Err()
		case <-ticker.C:
			result, err := r.Reconcile(ctx)
			if err != nil {
				r.logger.Error("reconcile cycle failed", slog.String("error", err.Error()))
				continue
			}
			r.logger.Debug("reconcile cycle complete",
				slog.Int("actions", len(result.Actions)),
				slog.Int("failed", len(result.Failed())),
				slog.Duration("duration", result.Duration()),
			)
		}
	}
}

// observeAPI counts provider API calls by operation and outcome. A
// not-found answer is a successful call, handled at the call site.
func observeAPI(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.APIRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// discover resolves both public addresses and records lookup metrics.
func (r *Reconciler) discover(ctx context.Context) (netip.Addr, netip.Addr) {
	ipv4, ipv6 := r.resolver.Resolve(ctx)

	for _, lookup := range []struct {
		family string
		addr   netip.Addr
	}{
		{"ipv4", ipv4},
		{"ipv6", ipv6},
	} {
		outcome := "success"
		if !lookup.addr.IsValid() {
			outcome = "absent"
		}
		metrics.IPLookupsTotal.WithLabelValues(lookup.family, outcome).Inc()
	}

	return ipv4, ipv6
}

// verify probes the configured resolver after a successful write. Failures
// are logged, never escalated: propagation lag is expected.
func (r *Reconciler) verify(ctx context.Context, addr netip.Addr) {
	if r.checker == nil {
		return
	}

	match, err := r.checker.Matches(ctx, r.FQDN(), addr)
	switch {
	case err != nil:
		metrics.VerifyChecksTotal.WithLabelValues("error").Inc()
		r.logger.Warn("propagation check failed",
			slog.String("fqdn", r.FQDN()),
			slog.String("error", err.Error()),
		)
	case !match:
		metrics.VerifyChecksTotal.WithLabelValues("mismatch").Inc()
		r.logger.Warn("resolver does not serve the new address yet",
			slog.String("fqdn", r.FQDN()),
			slog.String("address", addr.String()),
		)
	default:
		metrics.VerifyChecksTotal.WithLabelValues("match").Inc()
		r.logger.Debug("resolver serves the new address",
			slog.String("fqdn", r.FQDN()),
			slog.String("address", addr.String()),
		)
	}
}

func (r *Reconciler) recordFor(recordType provider.RecordType, addr netip.Addr) provider.Record {
	return provider.Record{
		Type:    recordType,
		Name:    r.config.Subdomain,
		Content: addr.String(),
		TTL:     r.config.TTL,
		Proxied: false,
	}
}

func (r *Reconciler) setRecordID(recordType provider.RecordType, id string) {
	r.mu.Lock()
	r.recordIDs[recordType] = id
	r.mu.Unlock()
	metrics.RecordIDHeld.WithLabelValues(string(recordType)).Set(1)
}

func (r *Reconciler) clearRecordID(recordType provider.RecordType) {
	r.mu.Lock()
	delete(r.recordIDs, recordType)
	r.mu.Unlock()
	metrics.RecordIDHeld.WithLabelValues(string(recordType)).Set(0)
}
