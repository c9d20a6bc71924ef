package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"thread-go-home/internal/codes"
	"thread-go-home/internal/hub"
	"thread-go-home/internal/mesh"
	"thread-go-home/internal/store"
	"thread-go-home/internal/wire"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeStack struct {
	state mesh.State
}

func (s *fakeStack) Available() bool { return true }

func (s *fakeStack) Query(context.Context) (*mesh.State, error) {
	st := s.state
	return &st, nil
}

type fakeWriter struct {
	mu  sync.Mutex
	got []wire.Setting
}

func (w *fakeWriter) WriteSetting(_ context.Context, _ uint64, s wire.Setting) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.got = append(w.got, s)
	return nil
}

func newTestServer(t *testing.T, stack mesh.Stack, opts ...ServerOption) (*Server, *hub.Hub, *store.BoltStore) {
	t.Helper()
	db, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := testLogger()
	h := hub.New(db, stack, hub.NewEventBus(logger), logger, hub.WithClock(func() time.Time { return t0 }))
	srv := NewServer(h, logger, opts...)
	t.Cleanup(srv.Stop)
	return srv, h, db
}

func setupTestServer(t *testing.T, apiKey string) (*Server, *hub.Hub, *store.BoltStore) {
	t.Helper()
	var opts []ServerOption
	if apiKey != "" {
		opts = append(opts, WithAPIKey(apiKey))
	}
	return newTestServer(t, nil, opts...)
}

func seedDevice(t *testing.T, h *hub.Hub, serial uint64, dt codes.DevType) {
	t.Helper()
	hb := wire.HeartBeat{Serial: serial, Firmware: 0x03000201, DevType: dt, Status: codes.StatusRunningOk, Rloc16: uint16(0x0400 + serial)}
	if err := h.HandleHeartBeat(hb.EncodeLegacy()); err != nil {
		t.Fatal(err)
	}
}

func do(t *testing.T, srv http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

type rawEnvelope struct {
	APIVersion string `json:"apiVersion"`
	Data       struct {
		Kind             string           `json:"kind"`
		ID               string           `json:"id"`
		Updated          *time.Time       `json:"updated"`
		CurrentItemCount int              `json:"currentItemCount"`
		Items            []map[string]any `json:"items"`
	} `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) rawEnvelope {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var env rawEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.APIVersion != "1.0" || env.Data.CurrentItemCount != len(env.Data.Items) {
		t.Fatalf("bad envelope %s", w.Body)
	}
	return env
}

type rawPost struct {
	APIVersion string         `json:"apiVersion"`
	Kind       string         `json:"kind"`
	Data       map[string]any `json:"data"`
}

func decodePost(t *testing.T, w *httptest.ResponseRecorder, status int) rawPost {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d: %s", w.Code, status, w.Body)
	}
	var p rawPost
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestHealth(t *testing.T) {
	srv, h, _ := setupTestServer(t, "secret")
	seedDevice(t, h, 1, codes.DevTypeHortiLed)

	w := do(t, srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp healthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" || resp.Devices != 1 || resp.Mesh {
		t.Errorf("health = %+v", resp)
	}
}

func TestAPIKey(t *testing.T) {
	srv, _, _ := setupTestServer(t, "secret")
	if w := do(t, srv, "GET", "/api/devices", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/devices", "", "X-API-Key", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/devices", "", "X-API-Key", "secret"); w.Code != http.StatusOK {
		t.Errorf("good key: status = %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	srv, h, _ := newTestServer(t, nil, WithAllowedOrigins([]string{"http://panel.local"}))
	seedDevice(t, h, 1, codes.DevTypeHortiLed)

	w := do(t, srv, "OPTIONS", "/api/devices/1", "", "Origin", "http://panel.local")
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "http://panel.local" {
		t.Errorf("preflight: %d %v", w.Code, w.Header())
	}
	if w := do(t, srv, "OPTIONS", "/api/devices/1", "", "Origin", "http://evil"); w.Code != http.StatusForbidden {
		t.Errorf("foreign preflight: %d", w.Code)
	}
	if w := do(t, srv, "DELETE", "/api/devices/1", "", "Origin", "http://evil"); w.Code != http.StatusForbidden {
		t.Errorf("foreign delete: %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/devices", "", "Origin", "http://evil"); w.Code != http.StatusOK {
		t.Errorf("foreign get: %d", w.Code)
	}
}

func TestAPIListDevices(t *testing.T) {
	srv, h, _ := setupTestServer(t, "")
	seedDevice(t, h, 20, codes.DevTypeWeatherStation)
	seedDevice(t, h, 10, codes.DevTypeHortiLed)

	env := decodeEnvelope(t, do(t, srv, "GET", "/api/devices", ""))
	if env.Data.Kind != "Device" || env.Data.ID != allID || env.Data.CurrentItemCount != 2 {
		t.Fatalf("envelope = %+v", env.Data)
	}
	if env.Data.Items[0]["id"] != "10" || env.Data.Items[1]["deviceKind"] != "EnvSensor" {
		t.Errorf("items = %v", env.Data.Items)
	}
}

func TestAPIGetDevice(t *testing.T) {
	srv, h, _ := setupTestServer(t, "")
	seedDevice(t, h, 0x1A, codes.DevTypeHortiLed)

	for _, id := range []string{"26", "000000000000001A", "000000000000001a"} {
		p := decodePost(t, do(t, srv, "GET", "/api/devices/"+id, ""), http.StatusOK)
		if p.Kind != "Device" || p.Data["id"] != "26" || p.Data["firmware"] != "3.0.2+1" {
			t.Errorf("%s: %+v", id, p)
		}
	}
	if w := do(t, srv, "GET", "/api/devices/99", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown: status = %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/devices/zz", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d", w.Code)
	}
}

func TestAPIRenameDevice(t *testing.T) {
	srv, h, db := setupTestServer(t, "")
	seedDevice(t, h, 3, codes.DevTypeHortiLed)

	p := decodePost(t, do(t, srv, "PATCH", "/api/devices/3", `{"name":"Tomatoes","description":"north bed"}`), http.StatusOK)
	if p.Data["name"] != "Tomatoes" || p.Data["description"] != "north bed" {
		t.Errorf("renamed = %v", p.Data)
	}
	// Description is kept when omitted.
	p = decodePost(t, do(t, srv, "PATCH", "/api/devices/3", `{"name":"Peppers"}`), http.StatusOK)
	if p.Data["name"] != "Peppers" || p.Data["description"] != "north bed" {
		t.Errorf("renamed = %v", p.Data)
	}
	dev, err := db.GetDevice(3)
	if err != nil || dev.DisplayName() != "Peppers" {
		t.Errorf("stored = %v, %v", dev, err)
	}

	p = decodePost(t, do(t, srv, "PATCH", "/api/devices/3", `{"name":"Peppers","firmwareTag":"v3.0.2-rc1"}`), http.StatusOK)
	if p.Data["firmwareTag"] != "v3.0.2-rc1" || p.Data["firmware"] == nil {
		t.Errorf("tagged = %v", p.Data)
	}
	dev, _ = db.GetDevice(3)
	if tag, ok := dev.FirmwareTag(); !ok || tag != "v3.0.2-rc1" {
		t.Errorf("stored tag = %q, %v", tag, ok)
	}

	if w := do(t, srv, "PATCH", "/api/devices/3", `{bad`); w.Code != http.StatusBadRequest {
		t.Errorf("bad body: status = %d", w.Code)
	}
	if w := do(t, srv, "PATCH", "/api/devices/4", `{"name":"x"}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown: status = %d", w.Code)
	}
}

func TestAPIDeleteDevice(t *testing.T) {
	srv, h, db := setupTestServer(t, "")
	seedDevice(t, h, 3, codes.DevTypeHortiLed)

	if w := do(t, srv, "DELETE", "/api/devices/3", ""); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if _, err := db.GetDevice(3); err == nil {
		t.Error("device still stored")
	}
	if w := do(t, srv, "DELETE", "/api/devices/3", ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d", w.Code)
	}
}

func TestAPIDeviceCollections(t *testing.T) {
	srv, h, _ := setupTestServer(t, "")
	seedDevice(t, h, 5, codes.DevTypeWeatherStation)

	m := wire.Measurement{Type: codes.MeasureHumidity, Value1: 55}
	if err := h.HandleMeasurement(5, m.Encode()); err != nil {
		t.Fatal(err)
	}
	ns := []wire.Neighbor{{Rloc16: 0x0400, LinkQuality: 3}, {Rloc16: 0x0401}}
	if err := h.HandleNeighbors(5, wire.EncodeNeighbors(ns)); err != nil {
		t.Fatal(err)
	}
	cs := []wire.ConnectedDevice{{Type: codes.ConnectedWateringPump, Index: 1}}
	if err := h.HandleConnected(5, wire.EncodeConnectedDevices(cs)); err != nil {
		t.Fatal(err)
	}
	st := wire.Setting{Updated: 1700000000, Type: codes.SettingLogInterval, Value: 600}
	if err := h.HandleSettings(5, st.Encode()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path  string
		kind  string
		count int
	}{
		{"/api/devices/5/measurements", "Measurement", 1},
		{"/api/devices/5/neighbors", "Neighbor", 2},
		{"/api/devices/5/connected", "DevicesConnected", 1},
		{"/api/devices/5/settings", "Settings", 1},
	}
	for _, tt := range tests {
		env := decodeEnvelope(t, do(t, srv, "GET", tt.path, ""))
		if env.Data.Kind != tt.kind || env.Data.CurrentItemCount != tt.count || env.Data.ID != "5" {
			t.Errorf("%s: %+v", tt.path, env.Data)
		}
	}

	env := decodeEnvelope(t, do(t, srv, "GET", "/api/devices/5/settings", ""))
	if env.Data.Updated == nil || env.Data.Updated.Unix() != 1700000000 {
		t.Errorf("settings updated = %v", env.Data.Updated)
	}
	env = decodeEnvelope(t, do(t, srv, "GET", "/api/devices/5/measurements", ""))
	if env.Data.Updated == nil || !env.Data.Updated.Equal(t0) {
		t.Errorf("measurements updated = %v", env.Data.Updated)
	}

	if w := do(t, srv, "GET", "/api/devices/6/neighbors", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown device: status = %d", w.Code)
	}
}

func TestAPIPushSetting(t *testing.T) {
	srv, h, _ := setupTestServer(t, "")
	seedDevice(t, h, 5, codes.DevTypeHortiLed)

	body := `{"apiVersion":"1.0","data":{"typeId":13,"channel":0,"value":80}}`
	if w := do(t, srv, "POST", "/api/devices/5/settings", body); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no transport: status = %d", w.Code)
	}

	fw := &fakeWriter{}
	h.AddSettingWriter(fw)
	p := decodePost(t, do(t, srv, "POST", "/api/devices/5/settings", body), http.StatusAccepted)
	if p.Kind != "Settings" || p.Data["value"] != float64(80) {
		t.Errorf("response = %+v", p)
	}
	if len(fw.got) != 1 || fw.got[0].Type != codes.SettingPwmVal || fw.got[0].Updated != int32(t0.Unix()) {
		t.Errorf("written = %+v", fw.got)
	}

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"out of range", "/api/devices/5/settings", `{"data":{"typeId":13,"value":150}}`, http.StatusBadRequest},
		{"bad version", "/api/devices/5/settings", `{"apiVersion":"2.0","data":{"typeId":13}}`, http.StatusBadRequest},
		{"bad json", "/api/devices/5/settings", `{`, http.StatusBadRequest},
		{"unknown device", "/api/devices/6/settings", body, http.StatusNotFound},
	}
	for _, tt := range tests {
		if w := do(t, srv, "POST", tt.path, tt.body); w.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.name, w.Code, tt.status)
		}
	}
}

func TestAPISettingTypes(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")
	env := decodeEnvelope(t, do(t, srv, "GET", "/api/setting-types", ""))
	if env.Data.Kind != "SettingTypes" || env.Data.CurrentItemCount != len(codes.SettingTypes()) {
		t.Errorf("envelope = %+v", env.Data)
	}
}

func TestAPINetworkUnavailable(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")
	if w := do(t, srv, "GET", "/api/network", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestAPINetwork(t *testing.T) {
	stack := &fakeStack{state: mesh.State{
		Rloc16: 0x0400, Role: mesh.RoleLeader, HWID: 0xB0,
		Neighbors: []wire.Neighbor{{Rloc16: 0x0405, LinkQuality: 3, AverageRSSI: -50}},
	}}
	srv, h, _ := newTestServer(t, stack)
	seedDevice(t, h, 5, codes.DevTypeHortiLed)
	if err := h.SetNetworkConfig(&mesh.NetConfig{NetworkName: "greenhouse"}); err != nil {
		t.Fatal(err)
	}

	w := do(t, srv, "GET", "/api/network", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var resp struct {
		Data struct {
			CurrentItemCount int `json:"currentItemCount"`
			Items            []struct {
				Kind string          `json:"kind"`
				Data json.RawMessage `json:"data"`
			} `json:"items"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.CurrentItemCount != 2 || resp.Data.Items[0].Kind != "MeshState" || resp.Data.Items[1].Kind != "OtNetConfig" {
		t.Fatalf("network = %s", w.Body)
	}
	if !strings.Contains(string(resp.Data.Items[0].Data), `"role":"leader"`) {
		t.Errorf("state = %s", resp.Data.Items[0].Data)
	}

	// The border router now links to device 5.
	p := decodePost(t, do(t, srv, "GET", "/api/network/graph", ""), http.StatusOK)
	if p.Kind != "MeshGraph" {
		t.Errorf("kind = %q", p.Kind)
	}
	if nodes, _ := p.Data["nodes"].([]any); len(nodes) != 2 {
		t.Errorf("nodes = %v", p.Data["nodes"])
	}
	if edges, _ := p.Data["edges"].([]any); len(edges) != 1 {
		t.Errorf("edges = %v", p.Data["edges"])
	}
}

func TestAPINetworkConfig(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")
	if w := do(t, srv, "GET", "/api/network/config", ""); w.Code != http.StatusNotFound {
		t.Errorf("empty: status = %d", w.Code)
	}
	if w := do(t, srv, "PUT", "/api/network/config", `{"data":{}}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty config: status = %d", w.Code)
	}

	p := decodePost(t, do(t, srv, "PUT", "/api/network/config", `{"apiVersion":"1.0","data":{"networkName":"greenhouse","tlv":"AAEC"}}`), http.StatusOK)
	if p.Kind != "OtNetConfig" || p.Data["updated"] == nil {
		t.Errorf("put = %+v", p)
	}
	p = decodePost(t, do(t, srv, "GET", "/api/network/config", ""), http.StatusOK)
	if p.Data["networkName"] != "greenhouse" || p.Data["tlv"] != "AAEC" {
		t.Errorf("get = %+v", p)
	}
}

func TestAPIJoiner(t *testing.T) {
	srv, _, db := setupTestServer(t, "")
	if w := do(t, srv, "GET", "/api/network/joiner", ""); w.Code != http.StatusNotFound {
		t.Errorf("empty: status = %d", w.Code)
	}
	for _, body := range []string{`{"data":{}}`, `{"data":{"pskd":"abc"}}`, `{bad`} {
		if w := do(t, srv, "PUT", "/api/network/joiner", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, w.Code)
		}
	}

	p := decodePost(t, do(t, srv, "PUT", "/api/network/joiner", `{"data":{"euid64":1193046,"pskd":"J01NME"}}`), http.StatusOK)
	if p.Kind != "JoinerData" || p.Data["pskd"] != "J01NME" {
		t.Errorf("put = %+v", p)
	}
	p = decodePost(t, do(t, srv, "GET", "/api/network/joiner", ""), http.StatusOK)
	if p.Data["euid64"] != float64(1193046) || p.Data["pskd"] != "J01NME" {
		t.Errorf("get = %+v", p)
	}
	if j, err := db.GetJoiner(); err != nil || j.EUI64 == nil || *j.EUI64 != 1193046 {
		t.Errorf("stored = %s, %v", j.JSON(), err)
	}
}

func TestAPIAutomationsUnavailable(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")
	if w := do(t, srv, "GET", "/api/automations", ""); w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("list: %d %s", w.Code, w.Body)
	}
	if w := do(t, srv, "POST", "/api/automations", `{"name":"x"}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("create: status = %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/automations/x/run", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("run: status = %d", w.Code)
	}
}
