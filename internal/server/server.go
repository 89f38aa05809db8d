package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/CK6170/Loadcurve-go/curve"
	"github.com/CK6170/Loadcurve-go/models"
	"github.com/CK6170/Loadcurve-go/rig"
	serialpkg "github.com/CK6170/Loadcurve-go/serial"
)

// DeviceSession owns the rig hardware. One active operation at a time.
type DeviceSession struct {
	mu sync.Mutex

	params *models.PARAMETERS
	sess   *rig.Session

	opCancel context.CancelFunc
	opKind   string
}

type Server struct {
	mux *http.ServeMux

	store *RunStore
	dev   *DeviceSession

	wsAcquire *WSHub
}

func New() *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		store:     NewRunStore(),
		dev:       &DeviceSession{},
		wsAcquire: NewWSHub(),
	}

	// API
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/upload/config", s.handleUploadConfig)
	s.mux.HandleFunc("/api/connect", s.handleConnect)
	s.mux.HandleFunc("/api/disconnect", s.handleDisconnect)

	s.mux.HandleFunc("/api/acquire/start", s.handleAcquireStart)
	s.mux.HandleFunc("/api/acquire/stop", s.handleStopOp)
	s.mux.HandleFunc("/api/calibrate", s.handleCalibrate)

	s.mux.HandleFunc("/api/runs", s.handleRuns)
	s.mux.HandleFunc("/api/download", s.handleDownload)

	// WS
	s.mux.HandleFunc("/ws/acquire", s.handleWSAcquire)

	// Static frontend
	s.mux.Handle("/", http.FileServer(http.Dir("./web")))

	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, 2<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, 200, HealthResponse{OK: true, Timestamp: time.Now()})
}

func (s *Server) handleUploadConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	f, _, err := fileFromMultipart(r, "file")
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, 4<<20))
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	p, err := rig.DecodeParameters(raw)
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}

	s.dev.mu.Lock()
	s.dev.params = p
	s.dev.mu.Unlock()

	s.writeJSON(w, 200, UploadResponse{DUTSerial: p.DUT.SERIAL, RefScale: p.REF.SCALE})
}

func fileFromMultipart(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, nil, err
	}
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	return f, hdr, nil
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	if s.dev.params == nil {
		s.writeJSON(w, 400, APIError{Error: "no config uploaded"})
		return
	}
	s.dev.cancelLocked()
	_ = s.dev.disconnectLocked()

	p := s.dev.params
	if strings.TrimSpace(p.SERIAL.PORT) == "" {
		port := serialpkg.AutoDetectPort(p)
		if port == "" {
			s.writeJSON(w, 400, APIError{Error: "could not auto-detect serial port"})
			return
		}
		p.SERIAL.PORT = port
	}

	sess, err := rig.Connect(p)
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	if err := rig.ProbeVersions(sess); err != nil {
		_ = sess.Close()
		s.writeJSON(w, 400, APIError{Error: "device probe failed: " + err.Error()})
		return
	}
	s.dev.sess = sess

	resp := ConnectResponse{
		Connected:  true,
		BridgePort: p.SERIAL.PORT,
		MotorPort:  p.MOTOR.PORT,
	}
	// Best effort; an old controller firmware without the battery read
	// should not fail the connect.
	if v, err := sess.BatteryVoltage(); err == nil {
		resp.BatteryV = v
	}
	s.writeJSON(w, 200, resp)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.cancelLocked()
	_ = s.dev.disconnectLocked()
	s.writeJSON(w, 200, map[string]bool{"ok": true})
}

func (s *Server) handleStopOp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.cancelLocked()
	s.writeJSON(w, 200, map[string]bool{"ok": true})
}

func (d *DeviceSession) cancelLocked() {
	if d.opCancel != nil {
		d.opCancel()
		d.opCancel = nil
		d.opKind = ""
	}
}

func (d *DeviceSession) disconnectLocked() error {
	if d.sess != nil {
		_ = d.sess.Close()
	}
	d.sess = nil
	return nil
}

// handleAcquireStart runs a full motor ramp acquisition in the background,
// streaming samples over the WS hub, then fits and persists the run.
func (s *Server) handleAcquireStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	s.dev.mu.Lock()
	if s.dev.sess == nil || s.dev.params == nil {
		s.dev.mu.Unlock()
		s.writeJSON(w, 400, APIError{Error: "not connected"})
		return
	}
	s.dev.cancelLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.dev.opCancel = cancel
	s.dev.opKind = "acquire"
	sess := s.dev.sess
	p := s.dev.params
	s.dev.mu.Unlock()

	go func() {
		rec, err := rig.Acquire(ctx, sess, func(u rig.Update) {
			s.wsAcquire.Broadcast(WSMessage{Type: "sample", Data: u})
		})
		if err != nil {
			s.wsAcquire.Broadcast(WSMessage{Type: "error", Data: map[string]string{"error": err.Error()}})
			return
		}

		run, err := s.store.Put(rec)
		if err != nil {
			s.wsAcquire.Broadcast(WSMessage{Type: "error", Data: map[string]string{"error": err.Error()}})
			return
		}

		out, err := rig.CalibrateRecording(rec, p)
		if err != nil {
			// The raw run is kept; the client can retry with another window.
			s.wsAcquire.Broadcast(WSMessage{Type: "error", Data: map[string]string{
				"error": err.Error(),
				"runId": run.ID,
			}})
			return
		}
		s.store.SetOutcome(run.ID, out)

		dir, err := rig.SaveRun(rec, out, p)
		if err != nil {
			log.Printf("save run %s: %v", run.ID, err)
		}

		s.wsAcquire.Broadcast(WSMessage{
			Type: "done",
			Data: map[string]interface{}{
				"runId":    run.ID,
				"dir":      dir,
				"scaleDut": out.ScaleDUT,
				"residual": out.Residual,
				"leader":   out.Leader.String(),
			},
		})
	}()

	s.writeJSON(w, 200, map[string]bool{"ok": true})
}

// handleCalibrate re-fits a stored run, optionally with a different window
// fraction. Works without hardware connected.
func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req CalibrateRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	run, ok := s.store.Get(req.RunID)
	if !ok {
		s.writeJSON(w, 404, APIError{Error: "run not found"})
		return
	}

	s.dev.mu.Lock()
	p := s.dev.params
	s.dev.mu.Unlock()
	if p == nil {
		s.writeJSON(w, 400, APIError{Error: "no config uploaded"})
		return
	}

	fraction := p.WINDOW
	if req.WindowFraction > 0 {
		fraction = req.WindowFraction
	}
	out, err := curve.Calibrate(run.Rec.Ref, run.Rec.Dut, p.REF.SCALE, curve.Options{WindowFraction: fraction})
	if err != nil {
		s.writeJSON(w, 422, APIError{Error: err.Error()})
		return
	}
	s.store.SetOutcome(run.ID, out)
	s.writeJSON(w, 200, outcomeDTO(out))
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	recs := s.store.List()
	out := make([]RunDTO, 0, len(recs))
	for _, rec := range recs {
		dto := RunDTO{
			ID:         rec.ID,
			Taken:      rec.Taken,
			Samples:    len(rec.Rec.Ref),
			Calibrated: rec.Outcome != nil,
		}
		if rec.Outcome != nil {
			dto.ScaleDut = rec.Outcome.ScaleDUT
		}
		out = append(out, dto)
	}
	s.writeJSON(w, 200, out)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSON(w, 400, APIError{Error: "missing id"})
		return
	}
	run, ok := s.store.Get(id)
	if !ok {
		s.writeJSON(w, 404, APIError{Error: "not found"})
		return
	}
	dl := RunDownload{
		ID:    run.ID,
		Taken: run.Taken,
		Ref:   run.Rec.Ref,
		Dut:   run.Rec.Dut,
	}
	if run.Outcome != nil {
		d := outcomeDTO(run.Outcome)
		dl.Outcome = &d
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "run_"+run.ID+".json"))
	w.WriteHeader(200)
	_ = json.NewEncoder(w).Encode(dl)
}
