package core

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/openmensa/rfid-station/internal/logging"
)

// getUIDCmd is the PC/SC pseudo-APDU for reading a contactless card UID.
var getUIDCmd = []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}

// knownReaderHints match reader identifiers of the ACR family and other
// contactless readers when the configured name pattern does not.
var knownReaderHints = []string{"acr", "1252", "nfc", "contactless"}

// HardwareTransport drives a physical PC/SC reader.
type HardwareTransport struct {
	factory     ContextFactory
	namePattern string
	log         *logging.Logger

	ctx    SmartCardContext
	reader string
}

// NewHardwareTransport creates a transport that will select a reader whose
// identifier matches namePattern (case-insensitive substring), or any known
// contactless reader, or failing that the first reader found.
func NewHardwareTransport(factory ContextFactory, namePattern string, log *logging.Logger) *HardwareTransport {
	return &HardwareTransport{
		factory:     factory,
		namePattern: namePattern,
		log:         log,
	}
}

func (t *HardwareTransport) Connect() error {
	ctx, err := t.factory.EstablishContext()
	if err != nil {
		return fmt.Errorf("pcsc context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil {
		ctx.Release()
		return fmt.Errorf("list readers: %w", err)
	}
	if len(readers) == 0 {
		ctx.Release()
		return fmt.Errorf("no card readers found")
	}

	reader := selectReader(readers, t.namePattern)
	if reader == "" {
		reader = readers[0]
		t.log.Warn(logging.CatReader, "Configured reader not found, using first available", map[string]any{
			"pattern": t.namePattern,
			"reader":  reader,
		})
	}

	t.ctx = ctx
	t.reader = reader
	t.log.Info(logging.CatReader, "NFC reader connected", map[string]any{
		"reader": reader,
	})
	return nil
}

// selectReader returns the first reader matching the configured pattern or
// any known contactless reader hint, or "" when nothing matches.
func selectReader(readers []string, pattern string) string {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	for _, r := range readers {
		name := strings.ToLower(r)
		if pattern != "" && strings.Contains(name, pattern) {
			return r
		}
		for _, hint := range knownReaderHints {
			if strings.Contains(name, hint) {
				return r
			}
		}
	}
	return ""
}

// Poll probes for a card in the field and reads its UID. A failed card
// connect normally means no card is present; the PC/SC context is probed to
// distinguish that from a dead transport.
func (t *HardwareTransport) Poll() (PollResult, error) {
	if t.ctx == nil {
		return PollResult{}, fmt.Errorf("transport not connected")
	}

	card, err := t.ctx.Connect(t.reader)
	if err != nil {
		// No card in the field, unless the whole context is gone.
		if _, lerr := t.ctx.ListReaders(); lerr != nil {
			return PollResult{}, fmt.Errorf("reader lost: %w", lerr)
		}
		return PollResult{}, nil
	}
	defer card.Disconnect()

	rsp, err := card.Transmit(getUIDCmd)
	if err != nil {
		return PollResult{}, fmt.Errorf("transmit get UID: %w", err)
	}
	if len(rsp) < 2 {
		return PollResult{}, fmt.Errorf("invalid response length: %d", len(rsp))
	}

	sw1 := rsp[len(rsp)-2]
	sw2 := rsp[len(rsp)-1]
	if sw1 != 0x90 || sw2 != 0x00 {
		// Card left the field mid-read. Normal negative poll.
		return PollResult{}, nil
	}

	uid := strings.ToUpper(hex.EncodeToString(rsp[:len(rsp)-2]))
	return PollResult{Present: true, UID: uid}, nil
}

func (t *HardwareTransport) Disconnect() error {
	if t.ctx == nil {
		return nil
	}
	err := t.ctx.Release()
	t.ctx = nil
	t.reader = ""
	return err
}

func (t *HardwareTransport) Label() string {
	if t.reader != "" {
		return t.reader
	}
	return t.namePattern
}

func (t *HardwareTransport) Mock() bool { return false }
