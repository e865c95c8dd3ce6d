package core

import (
	"time"

	"github.com/openmensa/rfid-station/internal/types"
)

// Outbound event names consumed by terminal clients.
const (
	EventReaderConnected    = "rfidConnected"
	EventReaderDisconnected = "rfidDisconnected"
	EventReaderStatus       = "rfidStatus"
	EventCardScanned        = "cardScanned"
	EventScanResult         = "scanResult"
)

// Publisher fans out events to all connected terminal clients. Broadcasts
// are fire-and-forget: delivery is at most once per subscriber and a
// broadcast with no subscribers is a no-op.
type Publisher interface {
	Broadcast(event string, payload any)
}

// NopPublisher discards all events. Used before the real-time layer is
// attached and in tests that don't care about events.
type NopPublisher struct{}

func (NopPublisher) Broadcast(string, any) {}

// ConnectedPayload announces a (re)connected reader.
type ConnectedPayload struct {
	ReaderType string    `json:"readerType"`
	Connected  bool      `json:"connected"`
	MockMode   bool      `json:"mockMode,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// DisconnectedPayload announces a released reader.
type DisconnectedPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// ReaderConfig is the operator-visible reader configuration.
type ReaderConfig struct {
	ScanTimeoutMs int  `json:"scanTimeoutMs"`
	AutoReconnect bool `json:"autoReconnect"`
	BeepOnScan    bool `json:"beepOnScan"`
}

// StatusPayload answers a status query.
type StatusPayload struct {
	Connected  bool         `json:"connected"`
	ReaderType string       `json:"readerType"`
	MockMode   bool         `json:"mockMode"`
	State      string       `json:"state"`
	LastScan   *time.Time   `json:"lastScan"`
	Config     ReaderConfig `json:"config"`
}

// ScanDetectedPayload is emitted the moment a card is read, before any
// lookup has happened.
type ScanDetectedPayload struct {
	UID       string    `json:"uid"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"` // always "processing"
}

// CafeteriaInfo stamps successful scans with station identity.
type CafeteriaInfo struct {
	Name    string `json:"name"`
	Station string `json:"station"`
}

// ScanSuccessPayload is the scanResult event for an admitted user.
type ScanSuccessPayload struct {
	UID          string              `json:"uid"`
	Success      bool                `json:"success"`
	User         types.UserSnapshot  `json:"user"`
	Reservations []types.Reservation `json:"reservations"`
	Cafeteria    CafeteriaInfo       `json:"cafeteria"`
	Timestamp    time.Time           `json:"timestamp"`
}

// ScanFailurePayload is the scanResult event for any unsuccessful scan:
// unknown card, denied access, or an internal processing failure.
type ScanFailurePayload struct {
	UID       string              `json:"uid"`
	Success   bool                `json:"success"`
	Error     string              `json:"error"`
	Message   string              `json:"message,omitempty"`
	User      *types.UserSnapshot `json:"user,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}
