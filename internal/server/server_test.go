package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/soundlabml/genremic/internal/audio"
	"github.com/soundlabml/genremic/internal/config"
	"github.com/soundlabml/genremic/internal/session"
	"github.com/soundlabml/genremic/internal/viz"
)

type stubHandle struct {
	chunks chan []byte
	tap    *audio.Tap
	once   sync.Once
}

func newStubHandle() *stubHandle {
	h := &stubHandle{
		chunks: make(chan []byte, 1),
		tap:    audio.NewTap(256),
	}
	h.chunks <- []byte("data")
	return h
}

func (h *stubHandle) Chunks() <-chan []byte { return h.chunks }
func (h *stubHandle) Tap() *audio.Tap       { return h.tap }
func (h *stubHandle) SampleRate() int       { return 44100 }
func (h *stubHandle) MIME() string          { return audio.MIMEWebM }
func (h *stubHandle) Stop() error {
	h.once.Do(func() { close(h.chunks) })
	return nil
}

type stubBackend struct {
	fail bool
}

func (b *stubBackend) Open() (audio.Handle, error) {
	if b.fail {
		return nil, fmt.Errorf("%w: stub", audio.ErrDeviceUnavailable)
	}
	return newStubHandle(), nil
}

func (b *stubBackend) ListDevices() ([]string, error) { return nil, nil }
func (b *stubBackend) Name() string                   { return "stub" }

func newTestServer(t *testing.T, backend audio.Backend) (*httptest.Server, *session.Session) {
	t.Helper()
	sess := session.New(backend, nil)
	t.Cleanup(func() { sess.Close() })

	srv := httptest.NewServer(New(config.Default(), sess, "0").Handler())
	t.Cleanup(srv.Close)
	return srv, sess
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var body T
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func TestStatus_Idle(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body := decode[StatusResponse](t, resp)
	if body.Status != session.StateIdle {
		t.Errorf("Expected status %s, got %s", session.StateIdle, body.Status)
	}
	if body.Elapsed != "00:00" {
		t.Errorf("Expected elapsed 00:00, got %s", body.Elapsed)
	}
	if body.SampleRate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", body.SampleRate)
	}
	if body.HasRecording {
		t.Error("Expected no recording while idle")
	}
}

func TestLifecycle_StartStopDiscard(t *testing.T) {
	srv, sess := newTestServer(t, &stubBackend{})

	resp, err := http.Post(srv.URL+"/start", "", nil)
	if err != nil {
		t.Fatalf("Start request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 on start, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	if sess.Snapshot().State != session.StateRecording {
		t.Fatalf("Expected recording state, got %s", sess.Snapshot().State)
	}

	resp, err = http.Post(srv.URL+"/stop", "", nil)
	if err != nil {
		t.Fatalf("Stop request failed: %v", err)
	}
	resp.Body.Close()
	status := decodeStatus(t, srv)
	if status.Status != session.StateComplete {
		t.Fatalf("Expected complete state, got %s", status.Status)
	}
	if !status.HasRecording {
		t.Error("Expected a recording after stop")
	}

	resp, err = http.Post(srv.URL+"/discard", "", nil)
	if err != nil {
		t.Fatalf("Discard request failed: %v", err)
	}
	resp.Body.Close()
	if got := decodeStatus(t, srv).Status; got != session.StateIdle {
		t.Errorf("Expected idle after discard, got %s", got)
	}
}

func decodeStatus(t *testing.T, srv *httptest.Server) StatusResponse {
	t.Helper()
	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("Status request failed: %v", err)
	}
	return decode[StatusResponse](t, resp)
}

func TestStart_AlreadyRecordingConflicts(t *testing.T) {
	srv, sess := newTestServer(t, &stubBackend{})

	if err := sess.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Post(srv.URL+"/start", "", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409, got %d", resp.StatusCode)
	}
	body := decode[GenericResponse](t, resp)
	if body.Success {
		t.Error("Expected success=false")
	}
}

func TestStart_DeviceUnavailableMaps503(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{fail: true})

	resp, err := http.Post(srv.URL+"/start", "", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
}

func TestLevel_ReturnsBarBuffer(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})

	resp, err := http.Get(srv.URL + "/level")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	body := decode[LevelResponse](t, resp)

	if len(body.Bars) != viz.BarCount {
		t.Fatalf("Expected %d bars, got %d", viz.BarCount, len(body.Bars))
	}
	for i, v := range body.Bars {
		if v != viz.Floor {
			t.Errorf("Bar %d expected resting value %v, got %v", i, viz.Floor, v)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/status"},
		{http.MethodPost, "/level"},
		{http.MethodGet, "/start"},
		{http.MethodGet, "/stop"},
		{http.MethodGet, "/submit"},
		{http.MethodGet, "/discard"},
	}

	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, srv.URL+tt.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s failed: %v", tt.method, tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", tt.method, tt.path, resp.StatusCode)
		}
	}
}

func TestCORS_HeadersAndPreflight(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected open CORS origin, got %q", got)
	}

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/start", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Preflight failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", resp.StatusCode)
	}
}
