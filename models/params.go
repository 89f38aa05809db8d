package models

// PARAMETERS mirrors the rig config JSON. Field names match the JSON keys.
type PARAMETERS struct {
	SERIAL *SERIAL   `json:"SERIAL"` // bridge amplifier port
	MOTOR  *MOTOR    `json:"MOTOR"`
	REF    *LOADCELL `json:"REF"`
	DUT    *LOADCELL `json:"DUT"`
	SAMPLE *SAMPLE   `json:"SAMPLE"`
	// Active-window fraction for the curve fit. 0 means the default (0.1).
	WINDOW  float64 `json:"WINDOW"`
	DATADIR string  `json:"DATA_DIR"`
	DEBUG   bool    `json:"DEBUG"`
}

type SERIAL struct {
	PORT     string `json:"PORT"`
	BAUDRATE int    `json:"BAUDRATE"`
}

type MOTOR struct {
	PORT     string `json:"PORT"`
	BAUDRATE int    `json:"BAUDRATE"`
	ADDRESS  byte   `json:"ADDRESS"` // packet-serial address, 0x80 on stock controllers
	DUTY     int    `json:"DUTY"`    // duty ceiling, 0..32767
	ACCEL    int    `json:"ACCEL"`   // duty units per second
	PUSH     int    `json:"PUSH"`    // seconds of loading / unloading
	HOLD     int    `json:"HOLD"`    // seconds at peak load
	SETTLE   int    `json:"SETTLE"`  // seconds after release
}

type LOADCELL struct {
	CHANNEL int    `json:"CHANNEL"`
	SERIAL  string `json:"SERIAL"` // device serial number, keys the run directory
	// Known physical scale in kg per V/V. Required for REF, left zero for an
	// uncalibrated DUT. Example: a 500 lb cell with 3.0049 mV/V FSO works out
	// to 500*0.45359237 / (3.0049/1000) kg/(V/V).
	SCALE float64 `json:"SCALE"`
}

type SAMPLE struct {
	// Bridge data interval in ms. The bridge is noisy when the two channels
	// sample at different rates; 100 or 50 work best.
	INTERVAL int `json:"INTERVAL"`
	TARE     int `json:"TARE"` // readings averaged per channel for the tare
}
