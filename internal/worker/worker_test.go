package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/roomlink/internal/action"
	"github.com/sgerhart/roomlink/internal/logging"
	"github.com/sgerhart/roomlink/internal/model"
	"github.com/sgerhart/roomlink/internal/validate"
)

type recordingExecutor struct {
	mu    sync.Mutex
	calls []model.ForwardRequest
	err   error
}

func (e *recordingExecutor) Execute(ctx context.Context, verb model.Verb, payload, originChannel string) (model.ForwardResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, model.ForwardRequest{Verb: verb, Payload: payload, OriginChannel: originChannel})
	if e.err != nil {
		return model.ForwardResponse{}, e.err
	}
	return model.ForwardResponse{OK: true, Message: "done"}, nil
}

func (e *recordingExecutor) RoomName() string { return "Room A" }

func newTestWorker(t *testing.T, exec *recordingExecutor) *Server {
	t.Helper()
	v, err := validate.NewCommandValidator()
	require.NoError(t, err)
	return NewServer(exec, v, 0, logging.Discard())
}

func TestPing(t *testing.T) {
	s := newTestWorker(t, &recordingExecutor{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pong", rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestWorker(t, &recordingExecutor{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Room A", resp.Room)
}

func TestCommandEndpoint(t *testing.T) {
	exec := &recordingExecutor{}
	s := newTestWorker(t, exec)

	body := `{"verb":"open","payload":"https://example.com","origin_channel":"C1"}`
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/commands", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ForwardResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.OK)
	assert.Equal(t, []model.ForwardRequest{{Verb: model.VerbOpen, Payload: "https://example.com", OriginChannel: "C1"}}, exec.calls)
}

func TestCommandEndpoint_Rejects(t *testing.T) {
	exec := &recordingExecutor{}
	s := newTestWorker(t, exec)

	for _, body := range []string{`{"verb":"open"}`, `{"verb":"reboot"}`, `garbage`} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/commands", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, exec.calls)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/commands", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCommandEndpoint_ExecutionFailure(t *testing.T) {
	s := newTestWorker(t, &recordingExecutor{err: action.ErrMeetingsDisabled})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/commands", strings.NewReader(`{"verb":"create"}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp model.ForwardResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Message, "not configured")
}

func TestLegacyEndpoints(t *testing.T) {
	exec := &recordingExecutor{}
	s := newTestWorker(t, exec)

	post := func(path string, form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		return rec
	}

	rec := post("/openurl", url.Values{"url": {"https://example.com"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Success", rec.Body.String())

	rec = post("/openzoom", url.Values{"text": {"https://zoom.us/j/1?pwd=x"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = post("/createzoom", url.Values{"channel_id": {"C9"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, exec.calls, 3)
	assert.Equal(t, "https://zoom.us/j/1?pwd=x", exec.calls[1].Payload)
	assert.Equal(t, model.VerbCreate, exec.calls[2].Verb)
	assert.Equal(t, "C9", exec.calls[2].OriginChannel)
}

func TestReplyFor(t *testing.T) {
	s := newTestWorker(t, &recordingExecutor{})

	out := replyFor(s, []byte(`{"verb":"open","payload":"https://example.com"}`), time.Second)
	var resp model.ForwardResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.True(t, resp.OK)

	out = replyFor(s, []byte(`{"verb":"open"}`), time.Second)
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.False(t, resp.OK)
}

type fakePublisher struct {
	subjects []string
	err      error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subjects = append(p.subjects, subject)
	return p.err
}

func TestAnnouncer(t *testing.T) {
	var (
		mu  sync.Mutex
		got []model.RegisterRequest
	)
	coordinator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/register", r.URL.Path)
		var req model.RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		got = append(got, req)
		mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	}))
	defer coordinator.Close()

	a := NewAnnouncer(coordinator.URL+"/", "Room A", "10.0.0.5:42096", time.Hour, nil, logging.Discard())
	require.NoError(t, a.Announce(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, model.RegisterRequest{Name: "Room A", IP: "10.0.0.5", Address: "10.0.0.5:42096", ID: "rooma"}, got[0])
}

func TestAnnouncer_RunRepeats(t *testing.T) {
	var (
		mu    sync.Mutex
		count int
	)
	coordinator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
	}))
	defer coordinator.Close()

	a := NewAnnouncer(coordinator.URL, "Room A", "10.0.0.5", 10*time.Millisecond, nil, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestAnnouncer_FallsBackToNATS(t *testing.T) {
	coordinator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer coordinator.Close()

	pub := &fakePublisher{}
	a := NewAnnouncer(coordinator.URL, "Room A", "10.0.0.5", time.Hour, pub, logging.Discard())
	assert.NoError(t, a.Announce(context.Background()))
	assert.Equal(t, []string{model.RegisterSubject}, pub.subjects)

	pub.err = errors.New("nats down")
	assert.Error(t, a.Announce(context.Background()))
}

func TestAnnouncer_HTTPFailure(t *testing.T) {
	coordinator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid registration", http.StatusBadRequest)
	}))
	defer coordinator.Close()

	a := NewAnnouncer(coordinator.URL, "Room A", "10.0.0.5", time.Hour, nil, logging.Discard())
	assert.ErrorContains(t, a.Announce(context.Background()), "status 400")
}

func TestAdvertiseAddress(t *testing.T) {
	addr, err := AdvertiseAddress("10.1.2.3:9000", 42096)
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3:9000", addr)
}

func TestFirstIPv4(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		&net.IPNet{IP: net.ParseIP("192.168.1.83"), Mask: net.CIDRMask(24, 32)},
	}
	assert.Equal(t, "192.168.1.83", firstIPv4(addrs))
	assert.Empty(t, firstIPv4(addrs[:2]))
}
