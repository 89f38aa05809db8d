package serial

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestCRC16(t *testing.T) {
	// Known CCITT-0x1021 (zero seed, XModem) vectors.
	if got := crc16([]byte("123456789")); got != 0x31C3 {
		t.Errorf(`crc16("123456789"): got %04X, want 31C3`, got)
	}
	if got := crc16(nil); got != 0 {
		t.Errorf("crc16 of empty: got %04X, want 0", got)
	}
	if got := crc16([]byte{0x00}); got != 0 {
		t.Errorf("crc16 of one zero byte: got %04X, want 0", got)
	}
}

func TestParseVersionPacket(t *testing.T) {
	sent := []byte{0x80, cmdReadVersion}
	banner := "USB Roboclaw 2x7a v4.1.34\n"
	raw := append([]byte(banner), 0)
	crc := crc16(append(append([]byte{}, sent...), raw...))
	raw = append(raw, byte(crc>>8), byte(crc))

	got, err := parseVersionPacket(sent, raw)
	if err != nil {
		t.Fatal(err)
	}
	if got != "USB Roboclaw 2x7a v4.1.34" {
		t.Errorf("got banner %q", got)
	}

	bad := append([]byte{}, raw...)
	bad[len(bad)-1] ^= 0xFF
	if _, err := parseVersionPacket(sent, bad); err == nil {
		t.Error("corrupted crc accepted")
	}
	if _, err := parseVersionPacket(sent, raw[:len(raw)-1]); err == nil {
		t.Error("truncated packet accepted")
	}
	if _, err := parseVersionPacket(sent, []byte(banner)); err == nil {
		t.Error("unterminated packet accepted")
	}
}

func TestParseBatteryPacket(t *testing.T) {
	sent := []byte{0x80, cmdReadMainBattery}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], 124) // 12.4 V in tenths
	crc := crc16(append(append([]byte{}, sent...), buf[:2]...))
	binary.BigEndian.PutUint16(buf[2:4], crc)

	v, err := parseBatteryPacket(sent, buf)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(v-12.4) > 1e-12 {
		t.Errorf("got %v V, want 12.4", v)
	}

	bad := append([]byte{}, buf...)
	bad[3] ^= 0xFF
	if _, err := parseBatteryPacket(sent, bad); err == nil {
		t.Error("corrupted crc accepted")
	}
	if _, err := parseBatteryPacket(sent, buf[:3]); err == nil {
		t.Error("short packet accepted")
	}
}

func TestParseVersion(t *testing.T) {
	cases := []struct {
		resp    string
		id, maj string
		ok      bool
	}{
		{"Bridge Version 2.1.7", "", "", true},
		{"Version 10.0.3", "", "", true},
		{"garbage", "", "", false},
		{"Version 1.2", "", "", false},
	}
	for _, c := range cases {
		_, _, _, err := parseVersion(c.resp)
		if (err == nil) != c.ok {
			t.Errorf("%q: err=%v, ok=%v", c.resp, err, c.ok)
		}
	}
	id, maj, min, err := parseVersion("Bridge Version 2.1.7")
	if err != nil || id != 2 || maj != 1 || min != 7 {
		t.Errorf("got %d.%d.%d (%v), want 2.1.7", id, maj, min, err)
	}
}

func TestParseRatio(t *testing.T) {
	v, err := parseRatio("R3=+0.00123456", 3)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(v-0.00123456) > 1e-12 {
		t.Errorf("got %v", v)
	}
	if _, err := parseRatio("R3=+0.001", 0); err == nil {
		t.Error("channel mismatch accepted")
	}
	if _, err := parseRatio("R0=zzz", 0); err == nil {
		t.Error("non-numeric ratio accepted")
	}
	if v, err := parseRatio(" R1=-2.5e-4 ", 1); err != nil || math.Abs(v+2.5e-4) > 1e-12 {
		t.Errorf("negative/scientific: v=%v err=%v", v, err)
	}
}
