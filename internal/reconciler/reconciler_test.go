package reconciler

import (
	"context"
	"fmt"
	"net/netip"
	"testing"
	"time"

	"gitlab.bluewillows.net/root/ipweaver/pkg/provider"
)

func TestStart_NoAddresses(t *testing.T) {
	p := &fakeProvider{}
	r := New(p, &staticResolver{}, WithConfig(testConfig()))

	err := r.Start(context.Background())
	if err == nil {
		t.Fatal("expected an error when neither address is discoverable")
	}
	// The provider must not be contacted at all without an address in hand.
	if got := p.totalCalls(); got != 0 {
		t.Errorf("expected 0 provider calls, got %d", got)
	}
}

func TestStart_ZoneNotFound(t *testing.T) {
	p := &fakeProvider{
		zoneIDFunc: func(ctx context.Context, domain string) (string, error) {
			return "", provider.WrapError("fake", "zone_id", provider.ErrNotFound)
		},
	}
	r := New(p, &staticResolver{ipv4: mustAddr("203.0.113.7")}, WithConfig(testConfig()))

	err := r.Start(context.Background())
	if err == nil {
		t.Fatal("expected an error for a missing zone")
	}
	if !provider.IsNotFound(err) {
		t.Errorf("expected a not-found error, got %v", err)
	}
	// Zone resolution failure stops the pass before any record lookup.
	if got := p.callCount("find_A"); got != 0 {
		t.Errorf("expected 0 record lookups, got %d", got)
	}
}

func TestStart_ExistingAMissingAAAA(t *testing.T) {
	p := &fakeProvider{
		findFunc: func(ctx context.Context, zoneID, fqdn string, recordType provider.RecordType) (string, error) {
			if fqdn != "home.example.com" {
				t.Errorf("expected lookup for home.example.com, got %s", fqdn)
			}
			if recordType == provider.RecordTypeA {
				return "recA1", nil
			}
			return "", provider.ErrNotFound
		},
	}
	r := New(p, &staticResolver{
		ipv4: mustAddr("203.0.113.7"),
		ipv6: mustAddr("2001:db8::1"),
	}, WithConfig(testConfig()))

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Existing A record is adopted, only the AAAA record is created.
	if got := p.callCount("create_A"); got != 0 {
		t.Errorf("expected 0 A creations, got %d", got)
	}
	if got := p.callCount("create_AAAA"); got != 1 {
		t.Errorf("expected 1 AAAA creation, got %d", got)
	}

	if id, ok := r.RecordID(provider.RecordTypeA); !ok || id != "recA1" {
		t.Errorf("expected cached A record ID recA1, got %q (held=%v)", id, ok)
	}
	if _, ok := r.RecordID(provider.RecordTypeAAAA); !ok {
		t.Error("expected a cached AAAA record ID")
	}
}

func TestStart_NoRecordIDHeld(t *testing.T) {
	p := &fakeProvider{
		createFunc: func(ctx context.Context, zoneID string, record provider.Record) (string, error) {
			return "", provider.WrapError("fake", "create_record", &provider.APIError{StatusCode: 400, Reason: "bad request"})
		},
	}
	r := New(p, &staticResolver{ipv4: mustAddr("203.0.113.7")}, WithConfig(testConfig()))

	err := r.Start(context.Background())
	if err == nil {
		t.Fatal("expected an error when no record ID could be obtained")
	}
}

func TestStart_DryRunDoesNotCreate(t *testing.T) {
	p := &fakeProvider{}
	cfg := testConfig()
	cfg.DryRun = true
	r := New(p, &staticResolver{ipv4: mustAddr("203.0.113.7")}, WithConfig(cfg))

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.callCount("create_A"); got != 0 {
		t.Errorf("expected 0 creations in dry-run, got %d", got)
	}
}

// startReconciler runs a successful Start with an existing A record
// (recA1) and no AAAA record, mirroring a host with IPv4 only.
func startReconciler(t *testing.T, p *fakeProvider, resolver AddressResolver) *Reconciler {
	t.Helper()
	if p.findFunc == nil {
		p.findFunc = func(ctx context.Context, zoneID, fqdn string, recordType provider.RecordType) (string, error) {
			if recordType == provider.RecordTypeA {
				return "recA1", nil
			}
			return "", provider.ErrNotFound
		}
	}
	r := New(p, resolver, WithConfig(testConfig()))
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return r
}

func TestReconcile_NoopUpdateStillSent(t *testing.T) {
	p := &fakeProvider{}
	r := startReconciler(t, p, &staticResolver{ipv4: mustAddr("203.0.113.7")})

	// The address has not changed, yet the cycle still pushes an update.
	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := p.callCount("update_A"); got != 1 {
		t.Fatalf("expected 1 update, got %d", got)
	}
	updates := result.Updated()
	if len(updates) != 1 {
		t.Fatalf("expected 1 successful update action, got %d", len(updates))
	}
	if updates[0].Target != "203.0.113.7" || updates[0].RecordID != "recA1" {
		t.Errorf("unexpected update action: %+v", updates[0])
	}
}

func TestReconcile_PayloadFields(t *testing.T) {
	p := &fakeProvider{}
	r := startReconciler(t, p, &staticResolver{
		ipv4: mustAddr("203.0.113.7"),
		ipv6: mustAddr("2001:db8::1"),
	})

	if _, err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Every payload carries the subdomain label, the fixed TTL, and
	// proxying off, for creates and updates alike.
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.records) == 0 {
		t.Fatal("expected recorded payloads")
	}
	for _, rec := range p.records {
		if rec.Name != "home" {
			t.Errorf("payload name = %q, want bare label home", rec.Name)
		}
		if rec.TTL != 600 {
			t.Errorf("payload TTL = %d, want 600", rec.TTL)
		}
		if rec.Proxied {
			t.Error("payload must never be proxied")
		}
	}
}

func TestReconcile_ForbiddenUpdateDropsID(t *testing.T) {
	p := &fakeProvider{
		updateFunc: func(ctx context.Context, zoneID, recordID string, record provider.Record) (string, error) {
			return "", provider.WrapError("fake", "update_record", &provider.APIError{StatusCode: 403, Reason: "Forbidden"})
		},
	}
	r := startReconciler(t, p, &staticResolver{ipv4: mustAddr("203.0.113.7")})

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.HasErrors() {
		t.Error("expected the rejected update to be reported as failed")
	}
	if _, held := r.RecordID(provider.RecordTypeA); held {
		t.Fatal("expected the cached record ID to be dropped after a 403")
	}

	// The next cycle recreates the record instead of retrying the update.
	p.updateFunc = nil
	if _, err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.callCount("create_A"); got != 1 {
		t.Errorf("expected 1 creation on the following cycle, got %d", got)
	}
	if got := p.callCount("update_A"); got != 1 {
		t.Errorf("expected no further updates, got %d", got)
	}
}

func TestReconcile_TransportFailureKeepsID(t *testing.T) {
	p := &fakeProvider{
		updateFunc: func(ctx context.Context, zoneID, recordID string, record provider.Record) (string, error) {
			return "", provider.WrapError("fake", "update_record",
				fmt.Errorf("%w: connection refused", provider.ErrProviderUnavailable))
		},
	}
	r := startReconciler(t, p, &staticResolver{ipv4: mustAddr("203.0.113.7")})

	if _, err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A transport fault says nothing about the record, so the ID survives
	// and the next cycle updates again.
	if id, held := r.RecordID(provider.RecordTypeA); !held || id != "recA1" {
		t.Fatalf("expected cached ID recA1 to survive, got %q (held=%v)", id, held)
	}

	p.updateFunc = nil
	if _, err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.callCount("update_A"); got != 2 {
		t.Errorf("expected 2 updates total, got %d", got)
	}
	if got := p.callCount("create_A"); got != 0 {
		t.Errorf("expected 0 creations, got %d", got)
	}
}

func TestReconcile_RateLimitKeepsID(t *testing.T) {
	p := &fakeProvider{
		updateFunc: func(ctx context.Context, zoneID, recordID string, record provider.Record) (string, error) {
			return "", provider.WrapError("fake", "update_record", &provider.APIError{StatusCode: 429, Reason: "rate limited"})
		},
	}
	r := startReconciler(t, p, &staticResolver{ipv4: mustAddr("203.0.113.7")})

	if _, err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, held := r.RecordID(provider.RecordTypeA); !held {
		t.Error("expected the cached record ID to survive a rate limit")
	}
}

func TestReconcile_SkipsWhenNoAddress(t *testing.T) {
	p := &fakeProvider{}
	r := startReconciler(t, p, &staticResolver{ipv4: mustAddr("203.0.113.7")})

	// Both families drop out mid-run; the cycle is skipped without API calls.
	r.resolver = &staticResolver{}

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Actions) != 0 {
		t.Errorf("expected no actions, got %d", len(result.Actions))
	}
	if got := p.callCount("update_A"); got != 0 {
		t.Errorf("expected 0 updates, got %d", got)
	}
}

func TestReconcile_SingleFamilySkipsOther(t *testing.T) {
	p := &fakeProvider{}
	r := startReconciler(t, p, &staticResolver{ipv4: mustAddr("203.0.113.7")})

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var skipped int
	for _, a := range result.Actions {
		if a.Type == ActionSkip && a.RecordType == "AAAA" {
			skipped++
		}
	}
	if skipped != 1 {
		t.Errorf("expected the AAAA record to be skipped, got actions %+v", result.Actions)
	}

	missing := r.MissingFamilies()
	if len(missing) != 1 || missing[0] != "AAAA" {
		t.Errorf("MissingFamilies() = %v, want [AAAA]", missing)
	}
}

func TestReconcile_DryRun(t *testing.T) {
	p := &fakeProvider{}
	cfg := testConfig()
	cfg.DryRun = true
	r := New(p, &staticResolver{ipv4: mustAddr("203.0.113.7")}, WithConfig(cfg))
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := p.callCount("create_A") + p.callCount("update_A"); got != 0 {
		t.Errorf("expected no write calls in dry-run, got %d", got)
	}
	for _, a := range result.Actions {
		if a.Type != ActionSkip && !a.DryRun {
			t.Errorf("expected action to be marked dry-run: %+v", a)
		}
	}
}

func TestReconcile_VerifyProbe(t *testing.T) {
	p := &fakeProvider{}
	checker := &fakeChecker{match: true}

	r := New(p, &staticResolver{ipv4: mustAddr("203.0.113.7")},
		WithConfig(testConfig()), WithChecker(checker))
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if _, err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checker.mu.Lock()
	defer checker.mu.Unlock()
	// One probe for the startup create, one for the cycle update.
	if len(checker.probes) != 2 {
		t.Fatalf("expected 2 propagation probes, got %d", len(checker.probes))
	}
	for _, addr := range checker.probes {
		if addr != netip.MustParseAddr("203.0.113.7") {
			t.Errorf("probe for %s, want 203.0.113.7", addr)
		}
	}
}

func TestRun_StartFailurePropagates(t *testing.T) {
	p := &fakeProvider{}
	r := New(p, &staticResolver{}, WithConfig(testConfig()))

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected Run to fail when Start fails")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	p := &fakeProvider{}
	cfg := testConfig()
	cfg.Interval = 10 * time.Millisecond
	r := New(p, &staticResolver{ipv4: mustAddr("203.0.113.7")}, WithConfig(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Let at least one cycle happen, then stop.
	waitFor(t, func() bool { return p.callCount("update_A") >= 1 })
	cancel()

	if err := <-done; err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
