package radio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func testPool(t *testing.T) AddressPool {
	t.Helper()
	pool, err := PoolFor("192.168.4.1")
	if err != nil {
		t.Fatalf("PoolFor() error = %v", err)
	}
	return pool
}

func neighborhood() []SimNetwork {
	return []SimNetwork{
		{Network: Network{SSID: "HomeNet", RSSI: -40, Secure: true}, Passphrase: "hunter2hunter2"},
		{Network: Network{SSID: "HomeNet", RSSI: -70, Secure: true}, Passphrase: "hunter2hunter2"}, // second BSSID
		{Network: Network{SSID: "CoffeeShop", RSSI: -55, Secure: false}},
		{Network: Network{SSID: "", RSSI: -30, Secure: true}}, // hidden
	}
}

func TestPoolFor(t *testing.T) {
	pool, err := PoolFor("192.168.4.1")
	if err != nil {
		t.Fatalf("PoolFor() error = %v", err)
	}
	if pool.Gateway != "192.168.4.1" {
		t.Errorf("Gateway = %s, want 192.168.4.1", pool.Gateway)
	}
	if pool.First != "192.168.4.2" {
		t.Errorf("First = %s, want 192.168.4.2", pool.First)
	}
	if pool.Size != DefaultPoolSize {
		t.Errorf("Size = %d, want %d", pool.Size, DefaultPoolSize)
	}

	if _, err := PoolFor("not-an-ip"); err == nil {
		t.Error("PoolFor() with invalid address should fail")
	}
}

func TestStartAPIdempotent(t *testing.T) {
	driver := NewSimDriver(neighborhood()...)
	m := NewManager(driver)
	pool := testPool(t)

	if err := m.StartAP("Portal", "12345678", pool); err != nil {
		t.Fatalf("StartAP() error = %v", err)
	}
	if !driver.APUp() {
		t.Fatal("access point should be up")
	}
	// Identical parameters: no-op, no error.
	if err := m.StartAP("Portal", "12345678", pool); err != nil {
		t.Fatalf("idempotent StartAP() error = %v", err)
	}
	if m.State().Kind != ApOnly {
		t.Errorf("state = %v, want ap-only", m.State())
	}
}

func TestScanDedupesAndSorts(t *testing.T) {
	driver := NewSimDriver(neighborhood()...)
	m := NewManager(driver)

	got, err := m.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []Network{
		{SSID: "HomeNet", RSSI: -40, Secure: true},
		{SSID: "CoffeeShop", RSSI: -55, Secure: false},
	}
	if len(got) != len(want) {
		t.Fatalf("Scan() returned %d networks, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Scan()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestScanEmptyNeighborhoodIsNotError(t *testing.T) {
	m := NewManager(NewSimDriver())
	got, err := m.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Scan() = %+v, want empty", got)
	}
}

func TestScanRejectsOverlap(t *testing.T) {
	driver := NewSimDriver(neighborhood()...)
	driver.SetLatency(200*time.Millisecond, 0)
	m := NewManager(driver)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = m.Scan(context.Background())
	}()

	// Let the first scan claim the guard.
	time.Sleep(50 * time.Millisecond)
	if _, err := m.Scan(context.Background()); !errors.Is(err, ErrScanBusy) {
		t.Errorf("overlapping Scan() error = %v, want ErrScanBusy", err)
	}
	wg.Wait()
}

func TestScanTimeoutYieldsEmptyResult(t *testing.T) {
	driver := NewSimDriver(neighborhood()...)
	driver.SetLatency(time.Second, 0)
	m := NewManager(driver, WithScanTimeout(20*time.Millisecond))

	got, err := m.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v, want nil on timeout", err)
	}
	if len(got) != 0 {
		t.Errorf("timed-out Scan() = %+v, want empty", got)
	}
}

func TestJoinSuccessDeactivatesAPAfterTransition(t *testing.T) {
	driver := NewSimDriver(neighborhood()...)

	var mu sync.Mutex
	var events []State
	var apWhenConnected []bool
	m := NewManager(driver,
		WithTransitionFunc(func(s State, apActive bool) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, s)
			if s.Kind == StationConnected {
				apWhenConnected = append(apWhenConnected, apActive)
			}
		}),
	)

	if err := m.StartAP("Portal", "12345678", testPool(t)); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(context.Background(), "HomeNet", "hunter2hunter2"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	if got := m.State(); got.Kind != StationConnected || got.Network != "HomeNet" {
		t.Errorf("state = %v, want station-connected(HomeNet)", got)
	}
	if driver.Connected() != "HomeNet" {
		t.Errorf("driver association = %q, want HomeNet", driver.Connected())
	}
	if driver.APUp() {
		t.Error("access point should be deactivated after a successful join")
	}

	mu.Lock()
	defer mu.Unlock()
	// The StationConnected transition must fire while the AP is still up:
	// teardown strictly follows the transition.
	if len(apWhenConnected) == 0 || !apWhenConnected[0] {
		t.Errorf("first StationConnected event saw apActive = %v, want true", apWhenConnected)
	}
	if events[0].Kind != ApOnly || events[1].Kind != ApWithPendingJoin {
		t.Errorf("transition order = %v", events)
	}
}

func TestJoinKeepsAPWhenPolicyDisabled(t *testing.T) {
	driver := NewSimDriver(neighborhood()...)
	m := NewManager(driver, WithDeactivateAPOnJoin(false))

	if err := m.StartAP("Portal", "12345678", testPool(t)); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(context.Background(), "CoffeeShop", ""); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if !driver.APUp() {
		t.Error("access point should stay up when teardown policy is disabled")
	}
}

func TestJoinFailuresRevertToApOnly(t *testing.T) {
	tests := []struct {
		name    string
		ssid    string
		pass    string
		latency time.Duration
		timeout time.Duration
		wantErr error
	}{
		{"network not found", "NoSuchNet", "whatever1", 0, DefaultJoinTimeout, ErrNetworkNotFound},
		{"wrong passphrase", "HomeNet", "wrong-pass", 0, DefaultJoinTimeout, ErrAuthFailed},
		{"timeout", "HomeNet", "hunter2hunter2", time.Second, 20 * time.Millisecond, ErrJoinTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := NewSimDriver(neighborhood()...)
			driver.SetLatency(0, tt.latency)
			m := NewManager(driver, WithJoinTimeout(tt.timeout))

			if err := m.StartAP("Portal", "12345678", testPool(t)); err != nil {
				t.Fatal(err)
			}

			err := m.Join(context.Background(), tt.ssid, tt.pass)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Join() error = %v, want %v", err, tt.wantErr)
			}
			if got := m.State(); got.Kind != ApOnly {
				t.Errorf("state after failed join = %v, want ap-only", got)
			}
			if !driver.APUp() {
				t.Error("access point must remain reachable after a failed join")
			}
			if driver.Connected() != "" {
				t.Errorf("driver association = %q, want none", driver.Connected())
			}
		})
	}
}

func TestJoinRejectsOverlap(t *testing.T) {
	driver := NewSimDriver(neighborhood()...)
	driver.SetLatency(0, 200*time.Millisecond)
	m := NewManager(driver)
	if err := m.StartAP("Portal", "12345678", testPool(t)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.Join(context.Background(), "HomeNet", "hunter2hunter2")
	}()

	time.Sleep(50 * time.Millisecond)
	if err := m.Join(context.Background(), "CoffeeShop", ""); !errors.Is(err, ErrJoinBusy) {
		t.Errorf("overlapping Join() error = %v, want ErrJoinBusy", err)
	}
	wg.Wait()
}

func TestJoinRejectedWhileConnected(t *testing.T) {
	driver := NewSimDriver(neighborhood()...)
	m := NewManager(driver)
	if err := m.StartAP("Portal", "12345678", testPool(t)); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(context.Background(), "CoffeeShop", ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(context.Background(), "HomeNet", "hunter2hunter2"); !errors.Is(err, ErrJoinBusy) {
		t.Errorf("Join() while connected error = %v, want ErrJoinBusy", err)
	}
}
