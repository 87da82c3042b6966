package reconciler

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"gitlab.bluewillows.net/root/ipweaver/pkg/provider"
)

// fakeProvider implements provider.Provider with per-method hooks and call
// recording.
type fakeProvider struct {
	mu      sync.Mutex
	calls   []string
	records []provider.Record // payloads seen by create and update

	pingFunc   func(ctx context.Context) error
	zoneIDFunc func(ctx context.Context, domain string) (string, error)
	findFunc   func(ctx context.Context, zoneID, fqdn string, recordType provider.RecordType) (string, error)
	createFunc func(ctx context.Context, zoneID string, record provider.Record) (string, error)
	updateFunc func(ctx context.Context, zoneID, recordID string, record provider.Record) (string, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) record(call string, payload ...provider.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.records = append(f.records, payload...)
}

func (f *fakeProvider) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeProvider) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) Ping(ctx context.Context) error {
	f.record("ping")
	if f.pingFunc != nil {
		return f.pingFunc(ctx)
	}
	return nil
}

func (f *fakeProvider) ZoneID(ctx context.Context, domain string) (string, error) {
	f.record("zone_id")
	if f.zoneIDFunc != nil {
		return f.zoneIDFunc(ctx, domain)
	}
	return "zone123", nil
}

func (f *fakeProvider) FindRecord(ctx context.Context, zoneID, fqdn string, recordType provider.RecordType) (string, error) {
	f.record("find_" + string(recordType))
	if f.findFunc != nil {
		return f.findFunc(ctx, zoneID, fqdn, recordType)
	}
	return "", provider.ErrNotFound
}

func (f *fakeProvider) CreateRecord(ctx context.Context, zoneID string, record provider.Record) (string, error) {
	f.record("create_"+string(record.Type), record)
	if f.createFunc != nil {
		return f.createFunc(ctx, zoneID, record)
	}
	return "new-" + string(record.Type), nil
}

func (f *fakeProvider) UpdateRecord(ctx context.Context, zoneID, recordID string, record provider.Record) (string, error) {
	f.record("update_"+string(record.Type), record)
	if f.updateFunc != nil {
		return f.updateFunc(ctx, zoneID, recordID, record)
	}
	return recordID, nil
}

// staticResolver returns fixed addresses. Zero values mean the family is
// unavailable.
type staticResolver struct {
	ipv4 netip.Addr
	ipv6 netip.Addr
}

func (s *staticResolver) Resolve(ctx context.Context) (netip.Addr, netip.Addr) {
	return s.ipv4, s.ipv6
}

// fakeChecker records propagation probes.
type fakeChecker struct {
	mu     sync.Mutex
	probes []netip.Addr
	match  bool
	err    error
}

func (f *fakeChecker) Matches(ctx context.Context, fqdn string, addr netip.Addr) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes = append(f.probes, addr)
	return f.match, f.err
}

func testConfig() Config {
	return Config{
		Domain:    "example.com",
		Subdomain: "home",
		TTL:       600,
		Interval:  600 * time.Second,
	}
}

func mustAddr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
