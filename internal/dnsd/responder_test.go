package dnsd

import (
	"encoding/binary"
	"net"
	"testing"
	"time"
)

func startResponder(t *testing.T) (*Responder, net.Addr) {
	t.Helper()
	r, err := NewResponder("127.0.0.1:0", "192.168.4.1")
	if err != nil {
		t.Fatalf("NewResponder() error = %v", err)
	}
	if err := r.Bind(); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	go func() {
		if err := r.Serve(); err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	}()
	t.Cleanup(func() { _ = r.Close() })
	return r, r.Addr()
}

func exchange(t *testing.T, addr net.Addr, datagram []byte, timeout time.Duration) ([]byte, error) {
	t.Helper()
	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(datagram); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func TestResponderAnswersAnyName(t *testing.T) {
	_, addr := startResponder(t)

	for _, name := range []string{"example.com", "captive.apple.com", "whatever.invalid"} {
		reply, err := exchange(t, addr, buildQuery(0x1234, name), 2*time.Second)
		if err != nil {
			t.Fatalf("no reply for %q: %v", name, err)
		}
		if got := binary.BigEndian.Uint16(reply[0:2]); got != 0x1234 {
			t.Errorf("reply id = 0x%04X, want 0x1234", got)
		}
		tail := reply[len(reply)-4:]
		if tail[0] != 192 || tail[1] != 168 || tail[2] != 4 || tail[3] != 1 {
			t.Errorf("reply for %q carries address %v, want 192.168.4.1", name, tail)
		}
	}
}

func TestResponderDropsMalformedAndKeepsServing(t *testing.T) {
	_, addr := startResponder(t)

	// Malformed datagrams must produce no reply.
	for _, datagram := range [][]byte{
		{0x01},
		{0x00, 0x01, 0x01, 0x00},
		func() []byte {
			q := buildQuery(9, "a.example")
			binary.BigEndian.PutUint16(q[4:6], 3)
			return q
		}(),
	} {
		if reply, err := exchange(t, addr, datagram, 300*time.Millisecond); err == nil {
			t.Errorf("malformed datagram got a reply: % X", reply)
		}
	}

	// And the loop must still be alive afterwards.
	reply, err := exchange(t, addr, buildQuery(0x4242, "still.alive"), 2*time.Second)
	if err != nil {
		t.Fatalf("responder died after malformed input: %v", err)
	}
	if got := binary.BigEndian.Uint16(reply[0:2]); got != 0x4242 {
		t.Errorf("reply id = 0x%04X, want 0x4242", got)
	}
}

func TestResponderRejectsBadDeviceAddress(t *testing.T) {
	if _, err := NewResponder("", "not-an-ip"); err == nil {
		t.Error("NewResponder() with invalid device address should fail")
	}
	if _, err := NewResponder("", "2001:db8::1"); err == nil {
		t.Error("NewResponder() with IPv6 device address should fail")
	}
}

func TestResponderCloseUnblocksServe(t *testing.T) {
	r, err := NewResponder("127.0.0.1:0", "192.168.4.1")
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Bind(); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Serve() }()

	time.Sleep(50 * time.Millisecond)
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() after Close() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after Close()")
	}
}
