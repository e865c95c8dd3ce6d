// Package install manages the station's systemd user service, so a kiosk
// box starts the scan service on boot without manual setup.
package install

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
)

const (
	appName = "rfid-station"

	serviceTemplate = `[Unit]
Description=Cafeteria RFID Station - card scan service
After=network.target

[Service]
Type=simple
ExecStart={{.ExecutablePath}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`
)

var (
	ErrAlreadyInstalled = errors.New("service is already installed")
	ErrNotInstalled     = errors.New("service is not installed")
)

// Manager installs and removes the systemd user unit.
type Manager struct{}

func New() *Manager {
	return &Manager{}
}

func (m *Manager) unitPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "systemd", "user", appName+".service")
}

func (m *Manager) Install() error {
	if m.IsInstalled() {
		return ErrAlreadyInstalled
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	unitDir := filepath.Dir(m.unitPath())
	if err := os.MkdirAll(unitDir, 0o755); err != nil {
		return fmt.Errorf("failed to create systemd user directory: %w", err)
	}

	tmpl, err := template.New("unit").Parse(serviceTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse unit template: %w", err)
	}

	f, err := os.Create(m.unitPath())
	if err != nil {
		return fmt.Errorf("failed to create unit file: %w", err)
	}
	defer f.Close()

	data := struct {
		ExecutablePath string
	}{
		ExecutablePath: execPath,
	}
	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write unit file: %w", err)
	}

	exec.Command("systemctl", "--user", "daemon-reload").Run()
	if err := exec.Command("systemctl", "--user", "enable", appName+".service").Run(); err != nil {
		return fmt.Errorf("failed to enable service: %w", err)
	}
	return nil
}

func (m *Manager) Uninstall() error {
	if !m.IsInstalled() {
		return ErrNotInstalled
	}

	exec.Command("systemctl", "--user", "stop", appName+".service").Run()
	exec.Command("systemctl", "--user", "disable", appName+".service").Run()

	if err := os.Remove(m.unitPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove unit file: %w", err)
	}
	exec.Command("systemctl", "--user", "daemon-reload").Run()
	return nil
}

func (m *Manager) IsInstalled() bool {
	_, err := os.Stat(m.unitPath())
	return err == nil
}

func (m *Manager) Status() (string, error) {
	if !m.IsInstalled() {
		return "not installed", nil
	}

	out, err := exec.Command("systemctl", "--user", "is-active", appName+".service").Output()
	if err == nil {
		return fmt.Sprintf("installed (%s)", strings.TrimSpace(string(out))), nil
	}
	return "installed but not running", nil
}
