package server

import (
	"bytes"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CK6170/Loadcurve-go/curve"
	"github.com/CK6170/Loadcurve-go/rig"
	"github.com/gorilla/websocket"
)

func testConfigUpload(t *testing.T, ts *httptest.Server) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "config.json")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(`{
		"SERIAL": {"PORT": "/dev/null", "BAUDRATE": 9600},
		"MOTOR": {"PORT": "/dev/null"},
		"REF": {"CHANNEL": 3, "SCALE": 1.0},
		"DUT": {"CHANNEL": 0, "SERIAL": "TEST-DUT"}
	}`))
	_ = mw.Close()

	resp, err := http.Post(ts.URL+"/api/upload/config", mw.FormDataContentType(), body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("upload: status %d", resp.StatusCode)
	}
	var up UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&up); err != nil {
		t.Fatal(err)
	}
	if up.DUTSerial != "TEST-DUT" {
		t.Errorf("got DUT serial %q", up.DUTSerial)
	}
}

func testRecording() *rig.Recording {
	var ref curve.Series
	for i := 0; i <= 20; i++ {
		ref = append(ref, float64(i)*5)
	}
	for i := 19; i >= 0; i-- {
		ref = append(ref, float64(i)*5)
	}
	dut := make(curve.Series, len(ref))
	for i := 1; i < len(ref); i++ {
		dut[i] = 0.5 * ref[i-1]
	}
	return &rig.Recording{Ref: ref, Dut: dut, Taken: time.Now()}
}

func TestServerHealth(t *testing.T) {
	ts := httptest.NewServer(New().Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var h HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatal(err)
	}
	if !h.OK {
		t.Error("health not ok")
	}
}

func TestServerCalibrateStoredRun(t *testing.T) {
	s := New()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	testConfigUpload(t, ts)

	run, err := s.store.Put(testRecording())
	if err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(CalibrateRequest{RunID: run.ID})
	resp, err := http.Post(ts.URL+"/api/calibrate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("calibrate: status %d", resp.StatusCode)
	}
	var out OutcomeDTO
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if math.Abs(out.ScaleDut-2.0) > 0.1 {
		t.Errorf("scaleDut: got %v, want ~2.0", out.ScaleDut)
	}
	if out.Leader != "dut" {
		t.Errorf("leader: got %q, want dut", out.Leader)
	}

	// The outcome is now visible in the run listing and the download.
	resp2, err := http.Get(ts.URL + "/api/runs")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var runs []RunDTO
	if err := json.NewDecoder(resp2.Body).Decode(&runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || !runs[0].Calibrated {
		t.Fatalf("runs: got %+v", runs)
	}

	resp3, err := http.Get(ts.URL + "/api/download?id=" + run.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp3.Body.Close()
	var dl RunDownload
	if err := json.NewDecoder(resp3.Body).Decode(&dl); err != nil {
		t.Fatal(err)
	}
	if dl.Outcome == nil || len(dl.Ref) != len(dl.Dut) || len(dl.Ref) == 0 {
		t.Fatalf("download: got %+v", dl)
	}
}

func TestServerCalibrateUnknownRun(t *testing.T) {
	s := New()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	testConfigUpload(t, ts)

	body, _ := json.Marshal(CalibrateRequest{RunID: "nope"})
	resp, err := http.Post(ts.URL+"/api/calibrate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestWSAcquireStream(t *testing.T) {
	s := New()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/acquire"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// The handler registers the client just after the handshake; keep
	// broadcasting until the message lands.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			s.wsAcquire.Broadcast(WSMessage{Type: "sample", Data: map[string]int{"total": 1}})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var msg WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "sample" {
		t.Errorf("got type %q, want sample", msg.Type)
	}
}

func TestServerAcquireRequiresConnection(t *testing.T) {
	ts := httptest.NewServer(New().Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/acquire/start", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
