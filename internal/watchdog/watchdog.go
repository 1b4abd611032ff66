// Package watchdog implements the liveness supervisor for the portal's
// run loop.
//
// The orchestrator must call Feed at least once per armed window; if no
// feed arrives in time, the expiry callback fires. On real hardware the
// callback hands control to the platform's reset line; the default
// callback logs fatally and exits so the process supervisor restarts the
// firmware. Expiry is the only recovery path for an unrecoverable hang -
// a controlled shutdown disarms the supervisor with Stop instead.
package watchdog

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
)

// Supervisor tracks a single moving deadline: the last liveness
// confirmation plus the armed timeout.
type Supervisor struct {
	onExpire func()

	mu       sync.Mutex
	timeout  time.Duration
	deadline time.Time
	armed    bool
	stop     chan struct{}
}

// New creates a supervisor. onExpire runs when the deadline passes without
// a feed; nil selects the default action of logging fatally and exiting.
func New(onExpire func()) *Supervisor {
	if onExpire == nil {
		onExpire = func() {
			logging.Fatal("Watchdog expired, forcing restart")
		}
	}
	return &Supervisor{onExpire: onExpire}
}

// Arm establishes the permitted silence window and starts the monitor.
// Arming an already-armed supervisor is an error.
func (s *Supervisor) Arm(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("watchdog timeout must be positive, got %v", timeout)
	}

	s.mu.Lock()
	if s.armed {
		s.mu.Unlock()
		return fmt.Errorf("watchdog is already armed")
	}
	s.timeout = timeout
	s.deadline = time.Now().Add(timeout)
	s.armed = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	// The monitor goroutine stands in for the hardware timer: it samples
	// the deadline a few times per window so expiry lands within the
	// armed timeout of the last feed.
	interval := timeout / 4
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	go s.monitor(stop, interval)

	logging.Info("Watchdog armed", zap.Duration("timeout", timeout))
	return nil
}

// Feed resets the deadline. It must be reached at least once per window
// from the run loop; feeding a disarmed supervisor is a no-op.
func (s *Supervisor) Feed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return
	}
	s.deadline = time.Now().Add(s.timeout)
}

// Stop disarms the supervisor. A controlled shutdown is not a hang, so it
// must never trip the restart path.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return
	}
	s.armed = false
	close(s.stop)
	logging.Info("Watchdog disarmed")
}

// Armed reports whether the supervisor is currently armed.
func (s *Supervisor) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

func (s *Supervisor) monitor(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			expired := s.armed && time.Now().After(s.deadline)
			if expired {
				// Disarm so the callback fires exactly once.
				s.armed = false
				close(s.stop)
			}
			s.mu.Unlock()

			if expired {
				logging.Error("Watchdog deadline missed")
				s.onExpire()
				return
			}
		}
	}
}
