package core

import (
	"time"

	"github.com/openmensa/rfid-station/internal/logging"
)

// detectorLoop polls the transport for card presence until the supervisor
// stops, a manual reconnect is requested, or the transport fails. A nil
// return means stop; errReconnectRequested and transport errors both send
// the run loop through the reconnect path.
//
// Repeat reads are debounced: the same UID is ignored while it stays inside
// the quiet window, so a card resting on the reader resolves once. A second
// read of the same card after the window, or a different card at any time,
// resolves immediately.
func (s *Supervisor) detectorLoop() error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var lastUID string
	var lastAt time.Time

	for {
		select {
		case <-s.stop:
			return nil
		case <-s.reconnectCh:
			s.log.Info(logging.CatReader, "Manual reconnect requested", nil)
			return errReconnectRequested
		case <-ticker.C:
		}

		t := s.currentTransport()
		if t == nil {
			return nil
		}

		res, err := t.Poll()
		if err != nil {
			return err
		}
		if !res.Present {
			continue
		}

		uid := CanonicalUID(res.UID)
		now := time.Now()
		if uid == lastUID && now.Sub(lastAt) < s.quietWindow {
			continue
		}
		lastUID, lastAt = uid, now

		s.log.Debug(logging.CatScan, "Card detected", map[string]any{"uid": uid})
		s.noteScan(now.UTC())

		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.resolver.Resolve(uid)
		}()
	}
}
