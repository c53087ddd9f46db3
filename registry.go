package fingerforce

import (
	"fmt"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.viam.com/rdk/logging"
)

// busSettings identifies a serial bus. Two users of one port must agree on it.
type busSettings struct {
	Port     string
	Baudrate int
	Timeout  time.Duration
}

func (s busSettings) withDefaults() busSettings {
	if s.Baudrate == 0 {
		s.Baudrate = 1000000
	}
	if s.Timeout == 0 {
		s.Timeout = time.Second
	}
	return s
}

type busEntry struct {
	bus      *feetech.Bus
	settings busSettings
	refCount int
}

// busRegistry shares one feetech bus per serial port between the services that use it.
type busRegistry struct {
	mu      sync.Mutex
	entries map[string]*busEntry
	open    func(busSettings) (*feetech.Bus, error)
	logger  logging.Logger
}

func openFeetechBus(s busSettings) (*feetech.Bus, error) {
	return feetech.NewBus(feetech.BusConfig{
		Port:     s.Port,
		BaudRate: s.Baudrate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  s.Timeout,
	})
}

func newBusRegistry(logger logging.Logger) *busRegistry {
	return &busRegistry{
		entries: make(map[string]*busEntry),
		open:    openFeetechBus,
		logger:  logger,
	}
}

var (
	globalRegistry     *busRegistry
	globalRegistryOnce sync.Once
)

func sharedBusRegistry() *busRegistry {
	globalRegistryOnce.Do(func() {
		globalRegistry = newBusRegistry(logging.NewLogger("fingerforce-bus"))
	})
	return globalRegistry
}

// Acquire returns the bus for the port, opening it on first use.
func (r *busRegistry) Acquire(settings busSettings) (*feetech.Bus, error) {
	settings = settings.withDefaults()

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[settings.Port]; ok {
		if entry.settings != settings {
			return nil, fmt.Errorf("conflict: port %s already open at %d baud (refCount: %d)",
				settings.Port, entry.settings.Baudrate, entry.refCount)
		}
		entry.refCount++
		return entry.bus, nil
	}

	bus, err := r.open(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create feetech servo bus: %w", err)
	}
	r.entries[settings.Port] = &busEntry{bus: bus, settings: settings, refCount: 1}
	r.logger.Infof("Opened feetech bus on %s at %d baud", settings.Port, settings.Baudrate)
	return bus, nil
}

// Release drops one reference and closes the bus when none remain.
func (r *busRegistry) Release(port string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[port]
	if !ok {
		return nil
	}
	entry.refCount--
	if entry.refCount > 0 {
		return nil
	}
	delete(r.entries, port)
	if entry.bus == nil {
		return nil
	}
	if err := entry.bus.Close(); err != nil {
		return fmt.Errorf("error closing shared bus for port %s: %w", port, err)
	}
	return nil
}

// Status returns the reference count for a port and whether it is open.
func (r *busRegistry) Status(port string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[port]
	if !ok {
		return 0, false
	}
	return entry.refCount, true
}
