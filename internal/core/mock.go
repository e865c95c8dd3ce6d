package core

import "time"

// MockLabel is the reader identifier reported by the mock transport.
const MockLabel = "Mock ACR1252"

// MockTransport simulates a reader for development and testing. It never
// reports a card on its own; scans are injected via the supervisor's
// SimulateScan entry point.
type MockTransport struct {
	// ConnectDelay simulates hardware settling time. Zero means the
	// default; tests may set a negative value to skip the delay.
	ConnectDelay time.Duration

	connected bool
}

const defaultMockConnectDelay = 50 * time.Millisecond

func (t *MockTransport) Connect() error {
	delay := t.ConnectDelay
	if delay == 0 {
		delay = defaultMockConnectDelay
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	t.connected = true
	return nil
}

// Poll always reports an empty field: the mock has no autonomous card
// source.
func (t *MockTransport) Poll() (PollResult, error) {
	return PollResult{}, nil
}

func (t *MockTransport) Disconnect() error {
	t.connected = false
	return nil
}

func (t *MockTransport) Label() string { return MockLabel }

func (t *MockTransport) Mock() bool { return true }
