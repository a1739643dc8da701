package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/tapbox/internal/httpapi"
	"github.com/BrandonDHaskell/tapbox/internal/metrics"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/engine"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/hw"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/mgmt"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/service"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store/memory"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/types"
)

type testDevice struct {
	ts     *httptest.Server
	fs     *memory.FS
	reader *hw.SimReader
	eng    *engine.Engine
	runErr chan error
}

// newTestServer boots an engine on an in-memory store, runs it, and serves
// the management API over httptest.
func newTestServer(t *testing.T, configJSON string) *testDevice {
	t.Helper()

	fs := memory.New()
	if configJSON != "" {
		if err := fs.WriteFile(store.ConfigFile, []byte(configJSON)); err != nil {
			t.Fatalf("seed config: %v", err)
		}
	}
	logger := slog.New(slog.DiscardHandler)
	clock := hw.SystemClock{}
	reader := &hw.SimReader{Wait: true}
	cards := service.NewCardRegistry(fs)
	activity := service.NewActivityLog(fs)
	cfg := service.NewConfigStore(fs)

	eng := engine.New(engine.Options{
		Reader:   reader,
		Strip:    hw.NewSimStrip(4),
		Buzzer:   &hw.SimBuzzer{},
		Clock:    clock,
		Wall:     clock,
		Cards:    cards,
		Activity: activity,
		Config:   cfg,
		Handler: mgmt.NewHandler(mgmt.Deps{
			Cards:    cards,
			Activity: activity,
			Config:   cfg,
			Network:  hw.SimNetwork{IP: "192.168.4.1", SSID: "TapBox"},
			System:   hw.SimSystem{Free: 1 << 16, Flash: 4 << 20},
			Battery:  hw.FixedBattery(4.2),
			Wall:     clock,
			Version:  "test",
			Logger:   logger,
		}),
		Logger:      logger,
		PollTimeout: 5 * time.Millisecond,
		ReadyFrame:  time.Microsecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	if err := eng.Boot(ctx); err != nil {
		t.Fatalf("boot: %v", err)
	}
	runErr := make(chan error, 1)
	go func() { runErr <- eng.Run(ctx) }()

	reg := prometheus.NewRegistry()
	if err := metrics.Init(reg, "test"); err != nil {
		t.Fatalf("metrics: %v", err)
	}

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:   logger,
		Addr:     ":0",
		Engine:   eng,
		Gatherer: reg,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-runErr
	})
	return &testDevice{ts: ts, fs: fs, reader: reader, eng: eng, runErr: runErr}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func getBody(t *testing.T, u string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("get %s: %v", u, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp, body
}

// ── Cards ────────────────────────────────────────────────────────────────────

func TestCards_AddListDelete(t *testing.T) {
	d := newTestServer(t, "")

	resp, err := http.PostForm(d.ts.URL+"/cards/add", url.Values{
		"uid": {"04a3f1"}, "color": {"#112233"}, "animation": {"solid"},
	})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusCreated)

	body := []byte(`{"uid":"BEEF","color":"#00FF00","animation":"blink"}`)
	resp, err = http.Post(d.ts.URL+"/cards/add", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusCreated)

	_, listBody := getBody(t, d.ts.URL+"/cards")
	var cards []types.CardRecord
	if err := json.Unmarshal(listBody, &cards); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cards) != 2 || cards[0].ID != "04A3F1" || cards[1].Animation != "blink" {
		t.Fatalf("unexpected cards: %+v", cards)
	}

	req, _ := http.NewRequest(http.MethodDelete, d.ts.URL+"/cards/04A3F1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	_, raw := getBody(t, d.ts.URL+"/cards.txt")
	if string(raw) != "BEEF,#00FF00,blink\n" {
		t.Fatalf("unexpected store: %q", raw)
	}
}

func TestCards_AddMissingField_400(t *testing.T) {
	d := newTestServer(t, "")

	resp, err := http.PostForm(d.ts.URL+"/cards/add", url.Values{"uid": {"AA"}, "color": {"#112233"}})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)

	var er types.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if er.Error != "validation_error" {
		t.Errorf("expected validation_error, got %q", er.Error)
	}
}

func TestCards_DeleteByForm(t *testing.T) {
	d := newTestServer(t, "")
	if err := d.fs.WriteFile(store.CardsFile, []byte("AA,#010203,solid\nBB,#040506,solid\n")); err != nil {
		t.Fatal(err)
	}
	resp, err := http.PostForm(d.ts.URL+"/cards/delete", url.Values{"uid": {"aa"}})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	_, raw := getBody(t, d.ts.URL+"/cards.txt")
	if string(raw) != "BB,#040506,solid\n" {
		t.Fatalf("unexpected store: %q", raw)
	}
}

func TestCardStore_RawWriteAndToggle(t *testing.T) {
	d := newTestServer(t, `{"management":{"upload":false}}`)

	raw := "AA,#010203,solid\nnot a card\n"
	resp, err := http.Post(d.ts.URL+"/card", "text/plain", strings.NewReader(raw))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	_, got := getBody(t, d.ts.URL+"/cards.txt")
	if string(got) != raw {
		t.Fatalf("raw store not verbatim: %q", got)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "cards.txt")
	_, _ = fw.Write([]byte("BB,#000000,solid\n"))
	_ = mw.Close()

	resp, err = http.Post(d.ts.URL+"/card/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusForbidden)
}

func TestCardStore_Upload(t *testing.T) {
	d := newTestServer(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "cards.txt")
	_, _ = fw.Write([]byte("BB,#000000,solid\n"))
	_ = mw.Close()

	resp, err := http.Post(d.ts.URL+"/card/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	_, got := getBody(t, d.ts.URL+"/cards.txt")
	if string(got) != "BB,#000000,solid\n" {
		t.Fatalf("unexpected store: %q", got)
	}
}

func TestCardStore_OversizedUploadKeepsPrevious(t *testing.T) {
	d := newTestServer(t, "")

	resp, err := http.Post(d.ts.URL+"/card", "text/plain", strings.NewReader("AA,#010203,solid\n"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "cards.txt")
	_, _ = fw.Write(bytes.Repeat([]byte("BB,#000000,solid\n"), (1<<20)/17+100))
	_ = mw.Close()

	resp, err = http.Post(d.ts.URL+"/card/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusRequestEntityTooLarge)

	_, got := getBody(t, d.ts.URL+"/cards.txt")
	if string(got) != "AA,#010203,solid\n" {
		t.Fatalf("rejected upload changed the store: %d bytes", len(got))
	}
}

func TestCardStore_OversizedRawWrite(t *testing.T) {
	d := newTestServer(t, "")

	body := strings.Repeat("x", (1<<20)+1)
	resp, err := http.Post(d.ts.URL+"/card", "text/plain", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusRequestEntityTooLarge)
}

// ── Config ───────────────────────────────────────────────────────────────────

func TestConfig_WriteRestartsEngine(t *testing.T) {
	d := newTestServer(t, "")

	resp, err := http.PostForm(d.ts.URL+"/config", url.Values{"config": {`{"deviceName":"Lobby"}`}})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	var mr types.MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !mr.Restart {
		t.Error("expected restart=true")
	}

	select {
	case err := <-d.runErr:
		if err != engine.ErrRestart {
			t.Fatalf("expected ErrRestart, got %v", err)
		}
		d.runErr <- err
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop for restart")
	}

	saved, err := d.fs.ReadFile(store.ConfigFile)
	if err != nil || string(saved) != `{"deviceName":"Lobby"}` {
		t.Fatalf("config not persisted verbatim: %q %v", saved, err)
	}

	resp2, _ := getBody(t, d.ts.URL+"/lastuid")
	expectStatus(t, resp2, http.StatusServiceUnavailable)
}

func TestConfig_RejectsNonObject(t *testing.T) {
	d := newTestServer(t, "")
	resp, err := http.Post(d.ts.URL+"/config", "application/json", strings.NewReader(`[1,2]`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)

	_, body := getBody(t, d.ts.URL+"/config")
	if string(body) != "{}" {
		t.Fatalf("expected empty document, got %q", body)
	}
}

// ── Scanner-facing reads ─────────────────────────────────────────────────────

func TestLastTagAndActivity(t *testing.T) {
	d := newTestServer(t, "")

	_, body := getBody(t, d.ts.URL+"/lastuid")
	if string(body) != mgmt.NoTag {
		t.Fatalf("expected %q, got %q", mgmt.NoTag, body)
	}

	d.reader.Present([]byte{0x04, 0xA3, 0xF1})
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, body = getBody(t, d.ts.URL+"/lastuid")
		if string(body) == "04A3F1" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("tag never seen, lastuid=%q", body)
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, body = getBody(t, d.ts.URL+"/activities")
	var recs []types.ActivityRecord
	if err := json.Unmarshal(body, &recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 1 || recs[0].Status != types.StatusUnknown {
		t.Fatalf("unexpected activity: %+v", recs)
	}

	resp, _ := getBody(t, d.ts.URL+"/activities/delete")
	expectStatus(t, resp, http.StatusOK)
	_, body = getBody(t, d.ts.URL+"/activities")
	if strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("expected empty log, got %s", body)
	}
}

// ── Status ───────────────────────────────────────────────────────────────────

func TestStatus_JSONAndProtobuf(t *testing.T) {
	d := newTestServer(t, "")

	_, body := getBody(t, d.ts.URL+"/status")
	var st types.DeviceStatus
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.DeviceName != "TapBox" || st.BatteryLevel != 100 || !st.ScanningEnabled {
		t.Fatalf("unexpected status: %+v", st)
	}

	req, _ := http.NewRequest(http.MethodGet, d.ts.URL+"/status", nil)
	req.Header.Set("Accept", "application/x-protobuf")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		t.Fatalf("content type %q", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal proto: %v", err)
	}
	if got := msg.GetFields()["device_name"].GetStringValue(); got != "TapBox" {
		t.Errorf("device_name = %q", got)
	}
	if got := msg.GetFields()["ip_address"].GetStringValue(); got != "192.168.4.1" {
		t.Errorf("ip_address = %q", got)
	}
}

func TestHealthMetricsAndRequestID(t *testing.T) {
	d := newTestServer(t, "")

	req, _ := http.NewRequest(http.MethodGet, d.ts.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("request id not echoed: %q", got)
	}

	resp, _ = getBody(t, d.ts.URL+"/cards")
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected a generated request id")
	}

	_, body := getBody(t, d.ts.URL+"/metrics")
	if !strings.Contains(string(body), `tapbox_http_requests_total{method="GET",path="/health",status="200"}`) {
		t.Errorf("request metric missing:\n%s", body)
	}
	if !strings.Contains(string(body), `tapbox_commands_total{command="ListCards",result="ok"} 1`) {
		t.Errorf("command metric missing")
	}
}
