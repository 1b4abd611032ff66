package portal

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muurk/wifiportal/internal/config"
	"github.com/muurk/wifiportal/internal/radio"
)

func testStore(t *testing.T, mutate func(*config.Settings)) *config.Store {
	t.Helper()
	settings := config.Defaults()
	if mutate != nil {
		mutate(&settings)
	}
	store := config.NewStore(filepath.Join(t.TempDir(), "config.yaml"))
	if err := store.Save(settings); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	return store
}

func testDriver() *radio.SimDriver {
	return radio.NewSimDriver(
		radio.SimNetwork{Network: radio.Network{SSID: "HomeNet", RSSI: -40, Secure: true}, Passphrase: "hunter2hunter2"},
		radio.SimNetwork{Network: radio.Network{SSID: "CoffeeShop", RSSI: -60, Secure: false}},
	)
}

// startOrchestrator runs the orchestrator on its own goroutine and waits
// for the Running phase. The returned channel carries Run's result.
func startOrchestrator(t *testing.T, o *Orchestrator, ctx context.Context) chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	waitForPhase(t, o, PhaseRunning)
	return done
}

func waitForPhase(t *testing.T, o *Orchestrator, want Phase) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		switch o.Phase() {
		case want:
			return
		case PhaseFailed:
			t.Fatalf("orchestrator failed while waiting for phase %q", want)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("phase = %q after 5s, want %q", o.Phase(), want)
}

func buildDNSQuery(id uint16, name string) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint16(buf[0:2], id)
	binary.BigEndian.PutUint16(buf[4:6], 1)
	for _, label := range strings.Split(name, ".") {
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	buf = append(buf, 0)
	buf = append(buf, 0, 1, 0, 1) // TYPE A, CLASS IN
	return buf
}

// queryDNS sends one A query and returns the response, or nil when no
// response arrives within the deadline.
func queryDNS(t *testing.T, addr, name string) []byte {
	t.Helper()
	conn, err := net.Dial("udp", addr)
	if err != nil {
		t.Fatalf("dial dns: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(buildDNSQuery(0xBEEF, name)); err != nil {
		t.Fatalf("send query: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if err != nil {
		return nil
	}
	return buf[:n]
}

func newTestOrchestrator(t *testing.T, mutate func(*config.Settings)) (*Orchestrator, *radio.SimDriver) {
	t.Helper()
	driver := testDriver()
	o := New(Config{
		Store:        testStore(t, mutate),
		Driver:       driver,
		DNSAddr:      "127.0.0.1:0",
		HTTPHost:     "127.0.0.1",
		TickInterval: 10 * time.Millisecond,
		DisableMDNS:  true,
	})
	return o, driver
}

func TestRunLifecycle(t *testing.T) {
	o, driver := newTestOrchestrator(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startOrchestrator(t, o, ctx)

	if !driver.APUp() {
		t.Error("access point not broadcasting in Running phase")
	}

	// The portal page is reachable.
	resp, err := http.Get("http://" + o.HTTPAddr() + "/")
	if err != nil {
		t.Fatalf("portal page: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(body) == 0 {
		t.Errorf("GET / status = %d, body length = %d", resp.StatusCode, len(body))
	}

	// Every DNS name resolves to the device address.
	answer := queryDNS(t, o.DNSAddr(), "connectivitycheck.example.com")
	if answer == nil {
		t.Fatal("no DNS answer")
	}
	deviceIP := net.ParseIP(o.Settings().DeviceAddress).To4()
	if !strings.HasSuffix(string(answer), string(deviceIP)) {
		t.Errorf("DNS answer does not end in device address %v", deviceIP)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil on controlled stop", err)
	}
	if o.Phase() != PhaseStopped {
		t.Errorf("phase = %q after stop, want %q", o.Phase(), PhaseStopped)
	}
	if driver.APUp() {
		t.Error("access point still broadcasting after stop")
	}
}

func TestSuccessfulJoinRetiresPortal(t *testing.T) {
	o, driver := newTestOrchestrator(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startOrchestrator(t, o, ctx)

	dnsAddr := o.DNSAddr()

	resp, err := http.PostForm("http://"+o.HTTPAddr()+"/connect",
		url.Values{"ssid": {"CoffeeShop"}, "password": {""}})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "Connection successful") {
		t.Fatalf("connect body = %q", body)
	}

	if driver.Connected() != "CoffeeShop" {
		t.Errorf("station = %q, want CoffeeShop", driver.Connected())
	}
	// Default policy tears the access point down after a successful join,
	// and the DNS intercept goes with it.
	if driver.APUp() {
		t.Error("access point still up after successful join")
	}
	if answer := queryDNS(t, dnsAddr, "example.com"); answer != nil {
		t.Error("DNS intercept still answering after access point teardown")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v", err)
	}
}

func TestJoinKeepsAPWhenPolicyDisabled(t *testing.T) {
	o, driver := newTestOrchestrator(t, func(s *config.Settings) {
		s.DeactivateAPOnJoin = false
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startOrchestrator(t, o, ctx)

	resp, err := http.PostForm("http://"+o.HTTPAddr()+"/connect",
		url.Values{"ssid": {"CoffeeShop"}, "password": {""}})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	resp.Body.Close()

	if !driver.APUp() {
		t.Error("access point torn down despite deactivate_ap_on_join=false")
	}
	if answer := queryDNS(t, o.DNSAddr(), "example.com"); answer == nil {
		t.Error("DNS intercept stopped answering while access point is up")
	}

	cancel()
	<-done
}

func TestStartupFailureEntersFailedPhase(t *testing.T) {
	driver := testDriver()
	o := New(Config{
		Store:        testStore(t, nil),
		Driver:       driver,
		DNSAddr:      "256.0.0.1:0", // unbindable
		HTTPHost:     "127.0.0.1",
		TickInterval: 10 * time.Millisecond,
		DisableMDNS:  true,
	})

	if err := o.Run(context.Background()); err == nil {
		t.Fatal("Run() = nil, want bind error")
	}
	if o.Phase() != PhaseFailed {
		t.Errorf("phase = %q, want %q", o.Phase(), PhaseFailed)
	}
	if driver.APUp() {
		t.Error("access point left up after startup failure")
	}
}

func TestOrchestratorIsSingleUse(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := startOrchestrator(t, o, ctx)
	cancel()
	<-done

	if err := o.Run(context.Background()); err == nil {
		t.Error("second Run() = nil, want reuse error")
	}
}
