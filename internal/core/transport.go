// Package core implements the RFID scan pipeline: reader transports, the
// connection supervisor and its debounced detector loop, the scan resolver,
// and the bounded scan history.
package core

// PollResult is the outcome of one presence poll. An absent card is a
// normal result, not an error; transport failures are reported through the
// error return of Poll.
type PollResult struct {
	Present bool
	UID     string // canonical uppercase hex, set when Present
}

// ReaderTransport abstracts a contactless reader or its mock substitute.
// Implementations are owned exclusively by the Supervisor.
type ReaderTransport interface {
	// Connect opens the reader. For hardware this enumerates devices and
	// selects one; for the mock it succeeds after a short simulated delay.
	Connect() error
	// Poll probes for a card and reads its UID when one is in the field.
	Poll() (PollResult, error)
	// Disconnect releases the reader.
	Disconnect() error
	// Label is the human-readable reader identifier.
	Label() string
	// Mock reports whether this is the mock variant.
	Mock() bool
}

// SmartCardContext represents a PC/SC context for listing readers.
// The indirection allows mocking the PC/SC layer in tests.
type SmartCardContext interface {
	ListReaders() ([]string, error)
	Connect(reader string) (SmartCard, error)
	Release() error
}

// SmartCard represents a connected card for transmitting commands.
type SmartCard interface {
	Transmit(cmd []byte) ([]byte, error)
	Disconnect() error
}

// ContextFactory creates SmartCardContext instances.
type ContextFactory interface {
	EstablishContext() (SmartCardContext, error)
}

// SelectMock decides which transport variant to use. Hardware is preferred;
// the mock is chosen when forced by configuration or when hardware
// initialization already failed.
func SelectMock(forceMock bool, hardwareInitFailed bool) bool {
	return forceMock || hardwareInitFailed
}
