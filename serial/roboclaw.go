package serial

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/CK6170/Loadcurve-go/models"
	goserial "github.com/tarm/serial"
)

// Roboclaw packet-serial commands used by the rig. Only motor 1 is wired.
const (
	cmdReadVersion     byte = 21
	cmdReadMainBattery byte = 24
	cmdDutyM1          byte = 32
	cmdDutyAccelM1     byte = 52
)

const ackByte = 0xFF

// Roboclaw drives the actuator through the controller's packet-serial
// protocol: address, command, payload, CRC-16. Writes are acked with a
// single 0xFF; reads return payload followed by a CRC over the whole
// exchange.
type Roboclaw struct {
	Serial *goserial.Port
	Addr   byte
	Config *models.MOTOR
}

func OpenRoboclaw(m *models.MOTOR) (*Roboclaw, error) {
	if m == nil {
		return nil, fmt.Errorf("missing MOTOR")
	}
	if m.PORT == "" {
		return nil, fmt.Errorf("missing MOTOR.PORT")
	}
	addr := m.ADDRESS
	if addr == 0 {
		addr = 0x80
	}
	cfg := &goserial.Config{
		Name:        m.PORT,
		Baud:        m.BAUDRATE,
		Parity:      goserial.ParityNone,
		Size:        8,
		StopBits:    goserial.Stop1,
		ReadTimeout: time.Millisecond * 100,
	}
	port, err := goserial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return &Roboclaw{Serial: port, Addr: addr, Config: m}, nil
}

func (r *Roboclaw) Close() error { return r.Serial.Close() }

// DutyAccel commands a signed duty cycle (-32767..32767) reached at the
// given acceleration. Duty 0 stops the motor; the worm gear holds the load.
func (r *Roboclaw) DutyAccel(duty int16, accel uint16) error {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], uint16(duty))
	binary.BigEndian.PutUint16(payload[2:4], accel)
	return r.writeAcked(cmdDutyAccelM1, payload)
}

// Duty commands a signed duty cycle immediately, no acceleration limit.
func (r *Roboclaw) Duty(duty int16) error {
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, uint16(duty))
	return r.writeAcked(cmdDutyM1, payload)
}

// Stop is a hard duty-zero.
func (r *Roboclaw) Stop() error { return r.Duty(0) }

// GetVersion returns the controller's firmware banner. The reply is banner
// text, a NUL terminator, then a CRC over the whole exchange; all of it is
// consumed and verified so no trailing bytes can shift a later ack.
func (r *Roboclaw) GetVersion() (string, error) {
	sent := []byte{r.Addr, cmdReadVersion}
	if _, err := r.Serial.Write(sent); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	raw, err := readTerminated(r.Serial, 300)
	if err != nil {
		return "", fmt.Errorf("ReadVersion: %v", err)
	}
	return parseVersionPacket(sent, raw)
}

// parseVersionPacket checks the trailing CRC, computed over the request
// bytes plus the banner including its terminator, and strips the framing.
func parseVersionPacket(sent, raw []byte) (string, error) {
	i := bytes.IndexByte(raw, 0)
	if i < 0 || len(raw) < i+3 {
		return "", fmt.Errorf("truncated version packet")
	}
	want := crc16(append(append([]byte{}, sent...), raw[:i+1]...))
	got := binary.BigEndian.Uint16(raw[i+1 : i+3])
	if want != got {
		return "", fmt.Errorf("version crc mismatch %04X != %04X", got, want)
	}
	return strings.TrimRight(string(raw[:i]), "\r\n"), nil
}

// MainBattery returns the main battery voltage in volts.
func (r *Roboclaw) MainBattery() (float64, error) {
	sent := []byte{r.Addr, cmdReadMainBattery}
	if _, err := r.Serial.Write(sent); err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	buf, err := readN(r.Serial, 4, 300)
	if err != nil {
		return 0, fmt.Errorf("ReadMainBattery: %v", err)
	}
	return parseBatteryPacket(sent, buf)
}

// parseBatteryPacket verifies the CRC over request plus payload and converts
// the controller's tenths-of-a-volt reading.
func parseBatteryPacket(sent, buf []byte) (float64, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("short battery packet")
	}
	want := crc16(append(append([]byte{}, sent...), buf[:2]...))
	got := binary.BigEndian.Uint16(buf[2:4])
	if want != got {
		return 0, fmt.Errorf("battery crc mismatch %04X != %04X", got, want)
	}
	return float64(binary.BigEndian.Uint16(buf[0:2])) / 10, nil
}

// writeAcked sends addr+cmd+payload+crc and waits for the 0xFF ack,
// retrying a few times; the controller drops packets with line noise.
func (r *Roboclaw) writeAcked(cmd byte, payload []byte) error {
	packet := make([]byte, 0, 2+len(payload)+2)
	packet = append(packet, r.Addr, cmd)
	packet = append(packet, payload...)
	crc := crc16(packet)
	packet = append(packet, byte(crc>>8), byte(crc))

	var lastErr error
	for try := 0; try < 3; try++ {
		if _, err := r.Serial.Write(packet); err != nil {
			lastErr = err
			continue
		}
		ack, err := readN(r.Serial, 1, 100)
		if err != nil {
			lastErr = err
			continue
		}
		if ack[0] == ackByte {
			return nil
		}
		lastErr = fmt.Errorf("bad ack %02X", ack[0])
	}
	return fmt.Errorf("command %d not acked: %v", cmd, lastErr)
}
