package rig

import (
	"fmt"

	"github.com/CK6170/Loadcurve-go/models"
	serialpkg "github.com/CK6170/Loadcurve-go/serial"
)

// Session holds the two open device connections for one calibration run.
type Session struct {
	Params *models.PARAMETERS
	Bridge *serialpkg.Bridge
	Motor  *serialpkg.Roboclaw
}

func Connect(p *models.PARAMETERS) (*Session, error) {
	if p == nil || p.SERIAL == nil || p.MOTOR == nil {
		return nil, fmt.Errorf("missing SERIAL/MOTOR sections")
	}
	bridge, err := serialpkg.OpenBridge(p.SERIAL)
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	motor, err := serialpkg.OpenRoboclaw(p.MOTOR)
	if err != nil {
		_ = bridge.Close()
		return nil, fmt.Errorf("motor: %w", err)
	}
	return &Session{Params: p, Bridge: bridge, Motor: motor}, nil
}

func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	var first error
	if s.Motor != nil {
		_ = s.Motor.Stop()
		if err := s.Motor.Close(); err != nil {
			first = err
		}
	}
	if s.Bridge != nil {
		if err := s.Bridge.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BatteryVoltage reads the motor controller's main battery in volts. A weak
// pack shows up as a ramp that stalls short of the configured duty.
func (s *Session) BatteryVoltage() (float64, error) {
	if s == nil || s.Motor == nil {
		return 0, fmt.Errorf("not connected")
	}
	return s.Motor.MainBattery()
}

// ProbeVersions checks both devices respond before a run starts.
func ProbeVersions(s *Session) error {
	if s == nil || s.Bridge == nil || s.Motor == nil {
		return fmt.Errorf("not connected")
	}
	if _, _, _, err := s.Bridge.GetVersion(); err != nil {
		return fmt.Errorf("bridge probe: %w", err)
	}
	if _, err := s.Motor.GetVersion(); err != nil {
		return fmt.Errorf("motor probe: %w", err)
	}
	return nil
}
