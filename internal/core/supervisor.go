package core

import (
	"errors"
	"sync"
	"time"

	"github.com/openmensa/rfid-station/internal/logging"
)

// State is the supervisor's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateScanning
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateScanning:
		return "scanning"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	// ErrNotMockMode rejects simulated scans against a real reader.
	ErrNotMockMode = errors.New("manual scans require mock reader mode")
	// ErrStopped rejects operations on a stopped supervisor.
	ErrStopped = errors.New("reader supervisor stopped")
)

var errReconnectRequested = errors.New("reconnect requested")

// SupervisorOptions configures a Supervisor. Hardware, Resolver, Publisher,
// History and Log are required; Mock is required unless hardware is
// guaranteed present. Zero durations take the defaults.
type SupervisorOptions struct {
	Hardware  ReaderTransport
	Mock      ReaderTransport
	ForceMock bool

	Resolver  *Resolver
	Publisher Publisher
	History   *History
	Log       *logging.Logger
	Config    ReaderConfig

	PollInterval     time.Duration
	QuietWindow      time.Duration
	ReconnectDelay   time.Duration
	DisconnectSettle time.Duration
}

// Supervisor owns the reader transport and drives the scan pipeline. It
// connects the reader (falling back to the mock when hardware is absent),
// polls for cards, debounces repeat reads, hands each accepted read to the
// resolver on its own goroutine, and reconnects after transport failures.
type Supervisor struct {
	hardware  ReaderTransport
	mock      ReaderTransport
	forceMock bool

	resolver  *Resolver
	publisher Publisher
	history   *History
	log       *logging.Logger
	readerCfg ReaderConfig

	pollInterval     time.Duration
	quietWindow      time.Duration
	reconnectDelay   time.Duration
	disconnectSettle time.Duration

	mu         sync.Mutex
	state      State
	transport  ReaderTransport
	mockActive bool // the adopted variant is the mock (forced or fallback)
	lastScan   *time.Time

	reconnectCh chan struct{}
	stop        chan struct{}
	done        chan struct{}
	stopOnce    sync.Once

	inflight sync.WaitGroup
}

// NewSupervisor builds a supervisor in the disconnected state. Call
// Initialize to connect a transport, then Start to begin polling.
func NewSupervisor(opts SupervisorOptions) *Supervisor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.QuietWindow <= 0 {
		opts.QuietWindow = 2 * time.Second
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 10 * time.Second
	}
	if opts.DisconnectSettle <= 0 {
		opts.DisconnectSettle = 2 * time.Second
	}
	if opts.Publisher == nil {
		opts.Publisher = NopPublisher{}
	}
	return &Supervisor{
		hardware:         opts.Hardware,
		mock:             opts.Mock,
		forceMock:        opts.ForceMock,
		resolver:         opts.Resolver,
		publisher:        opts.Publisher,
		history:          opts.History,
		log:              opts.Log,
		readerCfg:        opts.Config,
		pollInterval:     opts.PollInterval,
		quietWindow:      opts.QuietWindow,
		reconnectDelay:   opts.ReconnectDelay,
		disconnectSettle: opts.DisconnectSettle,
		state:            StateDisconnected,
		reconnectCh:      make(chan struct{}, 1),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
}

// Initialize connects a transport. Hardware is tried first unless mock mode
// is forced; when hardware initialization fails the mock takes over so the
// station stays operable. The mock fallback happens only here, never during
// reconnection.
func (s *Supervisor) Initialize() error {
	s.setState(StateConnecting)

	useMock := SelectMock(s.forceMock, false)
	if !useMock {
		if err := s.hardware.Connect(); err != nil {
			s.log.Warn(logging.CatReader, "Hardware reader unavailable, using mock reader", map[string]any{
				"error": err.Error(),
			})
			useMock = SelectMock(s.forceMock, true)
		} else {
			s.adoptTransport(s.hardware)
		}
	}
	if useMock {
		if err := s.mock.Connect(); err != nil {
			s.setState(StateDisconnected)
			return err
		}
		s.adoptTransport(s.mock)
	}

	t := s.currentTransport()
	s.log.Info(logging.CatReader, "Reader connected", map[string]any{
		"reader": t.Label(),
		"mock":   t.Mock(),
	})
	s.publisher.Broadcast(EventReaderConnected, ConnectedPayload{
		ReaderType: t.Label(),
		Connected:  true,
		MockMode:   t.Mock(),
		Timestamp:  time.Now().UTC(),
	})
	return nil
}

// Start launches the detection loop. Initialize must have succeeded.
func (s *Supervisor) Start() {
	go s.run()
}

func (s *Supervisor) run() {
	defer close(s.done)
	for {
		var err error
		if t := s.currentTransport(); t != nil && t.Mock() {
			// The mock has no autonomous card source, so there is
			// nothing to poll. Cards arrive via SimulateScan only.
			s.setState(StateConnected)
			err = s.idleLoop()
		} else {
			s.setState(StateScanning)
			err = s.detectorLoop()
		}
		if err == nil {
			// Stop requested.
			s.releaseTransport()
			return
		}

		if !errors.Is(err, errReconnectRequested) {
			s.log.Error(logging.CatReader, "Reader transport lost", map[string]any{
				"error": err.Error(),
			})
		}
		s.releaseTransport()

		if !s.readerCfg.AutoReconnect && !errors.Is(err, errReconnectRequested) {
			s.setState(StateDisconnected)
			if !s.awaitReconnectRequest() {
				return
			}
		}

		if !s.sleepInterruptible(s.disconnectSettle) {
			return
		}
		if !s.reconnectLoop() {
			return
		}
	}
}

// reconnectLoop retries the transport until it connects or the supervisor
// stops. Reports whether a connection was re-established.
func (s *Supervisor) reconnectLoop() bool {
	s.setState(StateReconnecting)

	// Reconnection keeps the variant that was active: a station on real
	// hardware keeps waiting for real hardware, a station that fell back
	// to the mock at startup (or was forced into it) stays on the mock.
	s.mu.Lock()
	target := s.hardware
	if s.mockActive {
		target = s.mock
	}
	s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		select {
		case <-s.stop:
			return false
		default:
		}

		s.setState(StateConnecting)
		s.log.Info(logging.CatReader, "Attempting reader reconnect", map[string]any{
			"attempt": attempt,
			"reader":  target.Label(),
		})
		if err := target.Connect(); err == nil {
			s.adoptTransport(target)
			s.publisher.Broadcast(EventReaderConnected, ConnectedPayload{
				ReaderType: target.Label(),
				Connected:  true,
				MockMode:   target.Mock(),
				Timestamp:  time.Now().UTC(),
			})
			s.log.Info(logging.CatReader, "Reader reconnected", map[string]any{
				"reader":  target.Label(),
				"attempt": attempt,
			})
			return true
		} else {
			s.log.Warn(logging.CatReader, "Reader reconnect failed", map[string]any{
				"attempt": attempt,
				"error":   err.Error(),
			})
		}

		s.setState(StateReconnecting)
		if !s.sleepInterruptible(s.reconnectDelay) {
			return false
		}
	}
}

// idleLoop parks the supervisor while the mock transport is active, waking
// only for stop or a manual reconnect request.
func (s *Supervisor) idleLoop() error {
	select {
	case <-s.stop:
		return nil
	case <-s.reconnectCh:
		s.log.Info(logging.CatReader, "Manual reconnect requested", nil)
		return errReconnectRequested
	}
}

// awaitReconnectRequest blocks until a manual reconnect is requested.
// Reports false when the supervisor stops first.
func (s *Supervisor) awaitReconnectRequest() bool {
	select {
	case <-s.stop:
		return false
	case <-s.reconnectCh:
		return true
	}
}

func (s *Supervisor) sleepInterruptible(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.stop:
		return false
	case <-t.C:
		return true
	}
}

func (s *Supervisor) releaseTransport() {
	s.mu.Lock()
	t := s.transport
	s.transport = nil
	s.mu.Unlock()
	if t == nil {
		return
	}
	if err := t.Disconnect(); err != nil {
		s.log.Warn(logging.CatReader, "Reader disconnect error", map[string]any{
			"error": err.Error(),
		})
	}
	s.publisher.Broadcast(EventReaderDisconnected, DisconnectedPayload{
		Timestamp: time.Now().UTC(),
	})
}

// Status returns a point-in-time snapshot of the reader.
func (s *Supervisor) Status() StatusPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := StatusPayload{
		State:  s.state.String(),
		Config: s.readerCfg,
	}
	if s.lastScan != nil {
		ts := *s.lastScan
		st.LastScan = &ts
	}
	if s.transport != nil {
		st.Connected = s.state == StateConnected || s.state == StateScanning
		st.ReaderType = s.transport.Label()
		st.MockMode = s.transport.Mock()
	}
	return st
}

// SimulateScan feeds a UID through the full scan pipeline as if a card had
// been tapped. Only permitted in mock mode; the resolution runs
// synchronously so callers observe a completed scan.
func (s *Supervisor) SimulateScan(uid string) error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.transport == nil || !s.transport.Mock() {
		s.mu.Unlock()
		return ErrNotMockMode
	}
	s.mu.Unlock()

	s.noteScan(time.Now().UTC())
	s.inflight.Add(1)
	defer s.inflight.Done()
	s.resolver.Resolve(uid)
	return nil
}

// Reconnect requests a disconnect-and-reconnect cycle. It returns
// immediately; progress is visible through status and reader events.
func (s *Supervisor) Reconnect() error {
	select {
	case <-s.stop:
		return ErrStopped
	default:
	}
	select {
	case s.reconnectCh <- struct{}{}:
	default:
		// A reconnect is already pending.
	}
	return nil
}

// Stop shuts the supervisor down. In-flight scan resolutions complete
// before Stop returns.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
	s.inflight.Wait()
	s.setState(StateStopped)
	s.log.Info(logging.CatReader, "Reader supervisor stopped", nil)
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Supervisor) adoptTransport(t ReaderTransport) {
	s.mu.Lock()
	s.transport = t
	s.mockActive = t.Mock()
	s.state = StateConnected
	s.mu.Unlock()
}

func (s *Supervisor) currentTransport() ReaderTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

func (s *Supervisor) noteScan(ts time.Time) {
	s.mu.Lock()
	s.lastScan = &ts
	s.mu.Unlock()
}
