// Package config loads the station configuration from the environment.
// The snapshot is read once at startup and never mutated afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type Config struct {
	// HTTP/WebSocket listen address.
	Addr string

	// Reader settings.
	ReaderName    string        // name pattern matched against PC/SC reader identifiers
	ScanTimeout   time.Duration // upper bound for one scan resolution
	AutoReconnect bool
	BeepOnScan    bool
	MockReader    bool // force the mock transport

	// Station identity stamped on scan results and purchases.
	StationID     string
	CafeteriaName string

	// Store selection.
	Store  string // "memory" | "sqlite"
	DBPath string
}

// FromEnv builds a Config from the process environment, falling back to
// defaults that match a single-station cafeteria deployment.
func FromEnv() Config {
	store := strings.ToLower(getenvDefault("RFID_STATION_STORE", StoreMemory))
	if store != StoreMemory && store != StoreSQLite {
		store = StoreMemory
	}

	return Config{
		Addr: getenvDefault("RFID_STATION_ADDR", "127.0.0.1:8730"),

		ReaderName:    getenvDefault("RFID_READER_NAME", "ACR1252"),
		ScanTimeout:   time.Duration(getenvInt("RFID_SCAN_TIMEOUT", 5000)) * time.Millisecond,
		AutoReconnect: getenvBool("RFID_AUTO_RECONNECT", true),
		BeepOnScan:    getenvBool("RFID_BEEP_ON_SCAN", true),
		MockReader:    getenvBool("MOCK_RFID_READER", false),

		StationID:     getenvDefault("STATION_ID", "STATION_001"),
		CafeteriaName: getenvDefault("CAFETERIA_NAME", "School Cafeteria"),

		Store:  store,
		DBPath: getenvDefault("RFID_STATION_DB_PATH", "./data/station.db"),
	}
}

// Validate reports configuration values that cannot work at all.
func (c Config) Validate() error {
	if c.ScanTimeout <= 0 {
		return fmt.Errorf("scan timeout must be positive, got %s", c.ScanTimeout)
	}
	if c.StationID == "" {
		return fmt.Errorf("station id must not be empty")
	}
	return nil
}

func getenvDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
