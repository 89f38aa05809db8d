package serial

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/CK6170/Loadcurve-go/models"
	goserial "github.com/tarm/serial"
)

// AutoDetectPort scans common serial ports for one answering the bridge
// version probe.
func AutoDetectPort(parameters *models.PARAMETERS) string {
	baud := parameters.SERIAL.BAUDRATE
	if runtime.GOOS == "windows" {
		// Scan COM1..COM64
		for i := 1; i <= 64; i++ {
			portName := fmt.Sprintf("COM%d", i)
			if TestPort(portName, baud) {
				return portName
			}
		}
		return ""
	}

	// Unix-like: try common device paths.
	candidates := make([]string, 0, 32)
	for _, pat := range []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyS*", "/dev/cu.*"} {
		matches, _ := filepath.Glob(pat)
		for _, m := range matches {
			if _, err := os.Stat(m); err == nil {
				candidates = append(candidates, m)
			}
		}
	}
	for _, portName := range candidates {
		if TestPort(portName, baud) {
			return portName
		}
	}
	return ""
}

// TestPort tries to open the port and issue a bridge version command.
func TestPort(name string, baud int) bool {
	config := &goserial.Config{Name: name, Baud: baud, Parity: goserial.ParityNone, Size: 8, StopBits: goserial.Stop1, ReadTimeout: time.Millisecond * 300}
	sp, err := goserial.OpenPort(config)
	if err != nil {
		return false
	}
	defer func() { _ = sp.Close() }()

	resp, err := sendCommand(sp, []byte("V\r"), 200)
	if err != nil {
		return false
	}
	return strings.Contains(resp, "Version")
}
