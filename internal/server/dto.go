package server

import (
	"time"

	"github.com/CK6170/Loadcurve-go/curve"
)

type APIError struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
}

type UploadResponse struct {
	DUTSerial string  `json:"dutSerial"`
	RefScale  float64 `json:"refScale"`
}

type ConnectResponse struct {
	Connected  bool    `json:"connected"`
	BridgePort string  `json:"bridgePort"`
	MotorPort  string  `json:"motorPort"`
	BatteryV   float64 `json:"batteryV,omitempty"`
}

type CalibrateRequest struct {
	RunID string `json:"runId"`
	// WindowFraction overrides the configured fraction when > 0; diagnostic.
	WindowFraction float64 `json:"windowFraction,omitempty"`
}

type OutcomeDTO struct {
	ScaleDut float64 `json:"scaleDut"`
	Residual float64 `json:"residual"`
	Window   [2]int  `json:"window"`
	Leader   string  `json:"leader"`
}

func outcomeDTO(out *curve.Outcome) OutcomeDTO {
	return OutcomeDTO{
		ScaleDut: out.ScaleDUT,
		Residual: out.Residual,
		Window:   out.Window,
		Leader:   out.Leader.String(),
	}
}

type RunDTO struct {
	ID         string    `json:"id"`
	Taken      time.Time `json:"taken"`
	Samples    int       `json:"samples"`
	Calibrated bool      `json:"calibrated"`
	ScaleDut   float64   `json:"scaleDut,omitempty"`
}

type RunDownload struct {
	ID      string      `json:"id"`
	Taken   time.Time   `json:"taken"`
	Ref     []float64   `json:"ref"`
	Dut     []float64   `json:"dut"`
	Outcome *OutcomeDTO `json:"outcome,omitempty"`
}
