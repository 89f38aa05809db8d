package serial

import (
	"bytes"
	"fmt"
	"time"

	goserial "github.com/tarm/serial"
)

// Low-level helpers shared by the bridge and motor drivers.

// sendCommand writes cmd and collects the ASCII response up to a CR or until
// timeoutMs elapses. Used by the bridge protocol.
func sendCommand(p *goserial.Port, cmd []byte, timeoutMs int) (string, error) {
	if _, err := p.Write(cmd); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	return readLine(p, timeoutMs)
}

// readLine reads until CR or timeout. Partial data at timeout is returned
// as-is; callers decide whether a truncated response is usable.
func readLine(p *goserial.Port, timeoutMs int) (string, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	buf := make([]byte, 0, 64)
	one := make([]byte, 32)
	for time.Now().Before(deadline) {
		n, err := p.Read(one)
		if err != nil {
			// tarm/serial returns an error on timeout expiry on some
			// platforms and n==0 on others; treat both as "no more data".
			break
		}
		if n == 0 {
			continue
		}
		buf = append(buf, one[:n]...)
		for i, b := range buf {
			if b == '\r' || b == '\n' {
				return string(buf[:i]), nil
			}
		}
	}
	if len(buf) == 0 {
		return "", fmt.Errorf("no response within %dms", timeoutMs)
	}
	return string(buf), nil
}

// readTerminated collects bytes until a NUL terminator plus the two trailing
// CRC bytes have arrived, or the deadline passes. The motor's version reply
// is the only variable-length packet in its protocol; consuming the CRC here
// keeps stale bytes from shifting a later ack.
func readTerminated(p *goserial.Port, timeoutMs int) ([]byte, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	buf := make([]byte, 0, 64)
	tmp := make([]byte, 64)
	for time.Now().Before(deadline) {
		n, err := p.Read(tmp)
		if err != nil {
			break
		}
		buf = append(buf, tmp[:n]...)
		if i := bytes.IndexByte(buf, 0); i >= 0 && len(buf) >= i+3 {
			return buf[:i+3], nil
		}
	}
	return nil, fmt.Errorf("no terminated response within %dms", timeoutMs)
}

// readN reads exactly n bytes or fails at the deadline. Used by the motor's
// binary packet protocol.
func readN(p *goserial.Port, n int, timeoutMs int) ([]byte, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	buf := make([]byte, 0, n)
	tmp := make([]byte, n)
	for len(buf) < n && time.Now().Before(deadline) {
		k, err := p.Read(tmp)
		if err != nil {
			break
		}
		buf = append(buf, tmp[:k]...)
	}
	if len(buf) < n {
		return nil, fmt.Errorf("short read: %d of %d bytes", len(buf), n)
	}
	return buf[:n], nil
}

// crc16 is the CCITT polynomial (0x1021) checksum the motor controller
// appends to every packet, zero seed, no reflection.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
