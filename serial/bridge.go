package serial

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/CK6170/Loadcurve-go/models"
	goserial "github.com/tarm/serial"
)

// Bridge is a two-channel bridge amplifier on RS-485. The converter muxes
// between the channels, so back-to-back reads of different channels are half
// a sample period apart; the curve package corrects for that.
type Bridge struct {
	Serial *goserial.Port
	Config *models.SERIAL
}

func OpenBridge(ser *models.SERIAL) (*Bridge, error) {
	if ser == nil {
		return nil, fmt.Errorf("missing SERIAL")
	}
	if ser.PORT == "" {
		return nil, fmt.Errorf("missing SERIAL.PORT")
	}
	cfg := &goserial.Config{
		Name:        ser.PORT,
		Baud:        ser.BAUDRATE,
		Parity:      goserial.ParityNone,
		Size:        8,
		StopBits:    goserial.Stop1,
		ReadTimeout: time.Millisecond * 300,
	}
	port, err := goserial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return &Bridge{Serial: port, Config: ser}, nil
}

func (b *Bridge) Close() error { return b.Serial.Close() }

// GetVersion probes the amplifier firmware, e.g. "Bridge Version 1.0.3".
func (b *Bridge) GetVersion() (int, int, int, error) {
	resp, err := sendCommand(b.Serial, []byte("V\r"), 200)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("GetVersion error: %v", err)
	}
	return parseVersion(resp)
}

// ReadRatio reads one channel's voltage ratio in V/V.
func (b *Bridge) ReadRatio(ch int) (float64, error) {
	cmd := fmt.Sprintf("R%d\r", ch)
	resp, err := sendCommand(b.Serial, []byte(cmd), 200)
	if err != nil {
		return 0, err
	}
	return parseRatio(resp, ch)
}

// ReadPair reads ref then dut in one mux cycle, in that order.
func (b *Bridge) ReadPair(refCh, dutCh int) (ref, dut float64, err error) {
	if ref, err = b.ReadRatio(refCh); err != nil {
		return 0, 0, fmt.Errorf("ref ch%d: %w", refCh, err)
	}
	if dut, err = b.ReadRatio(dutCh); err != nil {
		return 0, 0, fmt.Errorf("dut ch%d: %w", dutCh, err)
	}
	return ref, dut, nil
}

// Tare averages n readings of one channel at the given interval. The
// amplifier itself has no zero register; taring is host-side.
func (b *Bridge) Tare(ch, n int, interval time.Duration) (float64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("tare: n must be > 0")
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		v, err := b.ReadRatio(ch)
		if err != nil {
			return 0, fmt.Errorf("tare read %d: %w", i, err)
		}
		sum += v
		time.Sleep(interval)
	}
	return sum / float64(n), nil
}

// parseVersion extracts "id.major.minor" from a "... Version x.y.z" line.
func parseVersion(resp string) (int, int, int, error) {
	idx := strings.Index(resp, "Version ")
	if idx == -1 {
		return 0, 0, 0, fmt.Errorf("no version")
	}
	version := strings.TrimSpace(resp[idx+8:])
	parts := strings.Split(version, ".")
	if len(parts) < 3 {
		return 0, 0, 0, fmt.Errorf("invalid version %q", version)
	}
	id, _ := strconv.Atoi(parts[0])
	major, _ := strconv.Atoi(parts[1])
	minor, _ := strconv.Atoi(parts[2])
	return id, major, minor, nil
}

// parseRatio parses a "R<ch>=<float>" response line.
func parseRatio(resp string, ch int) (float64, error) {
	prefix := fmt.Sprintf("R%d=", ch)
	s := strings.TrimSpace(resp)
	if !strings.HasPrefix(s, prefix) {
		return 0, fmt.Errorf("unexpected response %q for channel %d", resp, ch)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s[len(prefix):]), 64)
	if err != nil {
		return 0, fmt.Errorf("bad ratio in %q: %v", resp, err)
	}
	return v, nil
}
