package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RFID_STATION_ADDR", "RFID_READER_NAME", "RFID_SCAN_TIMEOUT",
		"RFID_AUTO_RECONNECT", "RFID_BEEP_ON_SCAN", "MOCK_RFID_READER",
		"STATION_ID", "CAFETERIA_NAME", "RFID_STATION_STORE", "RFID_STATION_DB_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg := FromEnv()
	if cfg.Addr != "127.0.0.1:8730" {
		t.Errorf("unexpected addr %q", cfg.Addr)
	}
	if cfg.ReaderName != "ACR1252" {
		t.Errorf("unexpected reader name %q", cfg.ReaderName)
	}
	if cfg.ScanTimeout != 5*time.Second {
		t.Errorf("unexpected scan timeout %s", cfg.ScanTimeout)
	}
	if !cfg.AutoReconnect || !cfg.BeepOnScan {
		t.Errorf("unexpected reconnect/beep defaults %v/%v", cfg.AutoReconnect, cfg.BeepOnScan)
	}
	if cfg.MockReader {
		t.Error("mock reader must default off")
	}
	if cfg.StationID != "STATION_001" {
		t.Errorf("unexpected station id %q", cfg.StationID)
	}
	if cfg.Store != StoreMemory {
		t.Errorf("unexpected store %q", cfg.Store)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RFID_STATION_ADDR", "0.0.0.0:9000")
	t.Setenv("RFID_READER_NAME", "SCL3711")
	t.Setenv("RFID_SCAN_TIMEOUT", "2500")
	t.Setenv("RFID_AUTO_RECONNECT", "false")
	t.Setenv("MOCK_RFID_READER", "yes")
	t.Setenv("STATION_ID", "STATION_A2")
	t.Setenv("RFID_STATION_STORE", "SQLite")
	t.Setenv("RFID_STATION_DB_PATH", "/var/lib/rfid/station.db")

	cfg := FromEnv()
	if cfg.Addr != "0.0.0.0:9000" {
		t.Errorf("unexpected addr %q", cfg.Addr)
	}
	if cfg.ReaderName != "SCL3711" {
		t.Errorf("unexpected reader name %q", cfg.ReaderName)
	}
	if cfg.ScanTimeout != 2500*time.Millisecond {
		t.Errorf("unexpected scan timeout %s", cfg.ScanTimeout)
	}
	if cfg.AutoReconnect {
		t.Error("auto reconnect override not applied")
	}
	if !cfg.MockReader {
		t.Error("mock reader override not applied")
	}
	if cfg.StationID != "STATION_A2" {
		t.Errorf("unexpected station id %q", cfg.StationID)
	}
	if cfg.Store != StoreSQLite {
		t.Errorf("store name not normalized, got %q", cfg.Store)
	}
	if cfg.DBPath != "/var/lib/rfid/station.db" {
		t.Errorf("unexpected db path %q", cfg.DBPath)
	}
}

func TestFromEnvBadValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("RFID_SCAN_TIMEOUT", "not-a-number")
	t.Setenv("RFID_AUTO_RECONNECT", "maybe")
	t.Setenv("RFID_STATION_STORE", "postgres")

	cfg := FromEnv()
	if cfg.ScanTimeout != 5*time.Second {
		t.Errorf("bad timeout should fall back to default, got %s", cfg.ScanTimeout)
	}
	if !cfg.AutoReconnect {
		t.Error("bad bool should fall back to default")
	}
	if cfg.Store != StoreMemory {
		t.Errorf("unknown store should fall back to memory, got %q", cfg.Store)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{ScanTimeout: 5 * time.Second, StationID: "STATION_001"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg.ScanTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero scan timeout accepted")
	}

	cfg.ScanTimeout = time.Second
	cfg.StationID = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty station id accepted")
	}
}
