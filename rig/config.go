package rig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CK6170/Loadcurve-go/curve"
	"github.com/CK6170/Loadcurve-go/models"
	serialpkg "github.com/CK6170/Loadcurve-go/serial"
)

func LoadParameters(path string) (*models.PARAMETERS, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeParameters(b)
}

// DecodeParameters validates a raw config JSON and fills in defaults.
func DecodeParameters(b []byte) (*models.PARAMETERS, error) {
	var p models.PARAMETERS
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	if p.SERIAL == nil {
		return nil, fmt.Errorf("missing SERIAL section in JSON")
	}
	if p.MOTOR == nil {
		return nil, fmt.Errorf("missing MOTOR section in JSON")
	}
	if p.REF == nil || p.DUT == nil {
		return nil, fmt.Errorf("missing REF/DUT sections in JSON")
	}
	if p.REF.SCALE <= 0 {
		return nil, fmt.Errorf("REF.SCALE must be > 0 (known kg per V/V)")
	}
	if p.DUT.SERIAL == "" {
		return nil, fmt.Errorf("missing DUT.SERIAL (keys the run directory)")
	}
	applyDefaults(&p)
	return &p, nil
}

func applyDefaults(p *models.PARAMETERS) {
	if p.SAMPLE == nil {
		p.SAMPLE = &models.SAMPLE{}
	}
	if p.SAMPLE.INTERVAL <= 0 {
		p.SAMPLE.INTERVAL = 100
	}
	if p.SAMPLE.TARE <= 0 {
		p.SAMPLE.TARE = 10
	}
	if p.MOTOR.BAUDRATE <= 0 {
		p.MOTOR.BAUDRATE = 115200
	}
	if p.MOTOR.DUTY <= 0 {
		p.MOTOR.DUTY = 8000
	}
	if p.MOTOR.ACCEL <= 0 {
		p.MOTOR.ACCEL = 2000
	}
	if p.MOTOR.PUSH <= 0 {
		p.MOTOR.PUSH = 10
	}
	if p.MOTOR.HOLD <= 0 {
		p.MOTOR.HOLD = 2
	}
	if p.MOTOR.SETTLE <= 0 {
		p.MOTOR.SETTLE = 2
	}
	if p.WINDOW <= 0 {
		p.WINDOW = curve.DefaultWindowFraction
	}
	if p.DATADIR == "" {
		p.DATADIR = "data"
	}
}

func PersistParameters(path string, p *models.PARAMETERS) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EnsureSerialPort auto-detects the bridge port if missing and optionally
// persists it back into the config file.
func EnsureSerialPort(configPath string, p *models.PARAMETERS, persist bool) (changed bool, err error) {
	if p == nil || p.SERIAL == nil {
		return false, fmt.Errorf("missing SERIAL section")
	}
	if strings.TrimSpace(p.SERIAL.PORT) != "" {
		return false, nil
	}
	port := serialpkg.AutoDetectPort(p)
	if port == "" {
		return false, fmt.Errorf("could not auto-detect serial port")
	}
	p.SERIAL.PORT = port
	if persist {
		if err := PersistParameters(configPath, p); err != nil {
			return true, err
		}
	}
	return true, nil
}

// RunDir derives the per-device, per-run directory for a recording taken at t.
func RunDir(p *models.PARAMETERS, t time.Time) string {
	return filepath.Join(p.DATADIR, p.DUT.SERIAL, t.Format("2006_01_02_15_04_05"))
}
