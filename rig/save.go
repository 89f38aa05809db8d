package rig

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/CK6170/Loadcurve-go/curve"
	"github.com/CK6170/Loadcurve-go/models"
)

// Files written per run. The raw series and scale use the same plain text
// layout the offline re-fit path reads back, one value per line.
const (
	fileRef      = "loadcell_values_ref.txt"
	fileDut      = "loadcell_values_dut.txt"
	fileRefScale = "loadcell_ref_scale.txt"
	fileResult   = "result.json"
)

type Result struct {
	SCALEDUT float64 `json:"SCALE_DUT"`
	RESIDUAL float64 `json:"RESIDUAL"`
	WINDOW   [2]int  `json:"WINDOW"`
	LEADER   string  `json:"LEADER"`
	REFSCALE float64 `json:"REF_SCALE"`
	DUTSER   string  `json:"DUT_SERIAL"`
	TAKEN    string  `json:"TAKEN"`
}

// SaveRun persists a run's raw data and its outcome under
// <DATA_DIR>/<DUT serial>/<timestamp>/ and returns the directory.
func SaveRun(rec *Recording, out *curve.Outcome, p *models.PARAMETERS) (string, error) {
	if rec == nil || p == nil {
		return "", fmt.Errorf("missing recording or parameters")
	}
	dir := RunDir(p, rec.Taken)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := writeSeries(filepath.Join(dir, fileRef), rec.Ref); err != nil {
		return "", err
	}
	if err := writeSeries(filepath.Join(dir, fileDut), rec.Dut); err != nil {
		return "", err
	}
	if err := writeSeries(filepath.Join(dir, fileRefScale), curve.Series{p.REF.SCALE}); err != nil {
		return "", err
	}
	if out != nil {
		res := Result{
			SCALEDUT: out.ScaleDUT,
			RESIDUAL: out.Residual,
			WINDOW:   out.Window,
			LEADER:   out.Leader.String(),
			REFSCALE: p.REF.SCALE,
			DUTSER:   p.DUT.SERIAL,
			TAKEN:    rec.Taken.Format(time.RFC3339),
		}
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(dir, fileResult), data, 0644); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// LoadRun reads a stored run back for an offline re-fit without hardware.
func LoadRun(dir string) (ref, dut curve.Series, scaleRef float64, err error) {
	if ref, err = readSeries(filepath.Join(dir, fileRef)); err != nil {
		return nil, nil, 0, err
	}
	if dut, err = readSeries(filepath.Join(dir, fileDut)); err != nil {
		return nil, nil, 0, err
	}
	scales, err := readSeries(filepath.Join(dir, fileRefScale))
	if err != nil {
		return nil, nil, 0, err
	}
	if len(scales) != 1 || scales[0] <= 0 {
		return nil, nil, 0, fmt.Errorf("%s: want a single positive value", fileRefScale)
	}
	return ref, dut, scales[0], nil
}

func writeSeries(path string, s curve.Series) error {
	var b strings.Builder
	for _, v := range s {
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func readSeries(path string) (curve.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var s curve.Series
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad value %q: %v", path, line, err)
		}
		s = append(s, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(s) == 0 {
		return nil, fmt.Errorf("%s: empty series", path)
	}
	return s, nil
}
