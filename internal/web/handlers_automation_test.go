//go:build !no_automation

package web

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"thread-go-home/internal/automation"
)

func TestAPIAutomations(t *testing.T) {
	logger := testLogger()
	mgr, err := automation.NewManager(filepath.Join(t.TempDir(), "scripts"), logger)
	if err != nil {
		t.Fatal(err)
	}
	srv, h, _ := newTestServer(t, nil)
	engine := automation.NewEngine(h, mgr, logger)
	t.Cleanup(engine.Stop)
	WithAutomation(engine, mgr)(srv)

	w := do(t, srv, "POST", "/api/automations", `{"name":"Hello","lua_code":"log(\"hi\")","enabled":true}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d: %s", w.Code, w.Body)
	}
	var script automation.Script
	json.Unmarshal(w.Body.Bytes(), &script)
	if script.ID != "hello" || engine.Running() != 1 {
		t.Errorf("script = %+v, running = %d", script, engine.Running())
	}

	w = do(t, srv, "POST", "/api/automations/hello/run", "")
	var res automation.RunResult
	json.Unmarshal(w.Body.Bytes(), &res)
	if !res.OK || len(res.Logs) != 1 || res.Logs[0] != "hi" {
		t.Errorf("run = %+v", res)
	}

	if w := do(t, srv, "POST", "/api/automations/hello/toggle", ""); w.Code != http.StatusOK || engine.Running() != 0 {
		t.Errorf("toggle: status = %d, running = %d", w.Code, engine.Running())
	}
	if w := do(t, srv, "DELETE", "/api/automations/hello", ""); w.Code != http.StatusOK {
		t.Errorf("delete: status = %d", w.Code)
	}
	if w := do(t, srv, "DELETE", "/api/automations/hello", ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/automations/hello", ""); w.Code != http.StatusNotFound {
		t.Errorf("get deleted: status = %d", w.Code)
	}
}

func TestAPIAutomationUpdateAndInline(t *testing.T) {
	logger := testLogger()
	mgr, err := automation.NewManager(filepath.Join(t.TempDir(), "scripts"), logger)
	if err != nil {
		t.Fatal(err)
	}
	srv, h, _ := newTestServer(t, nil)
	engine := automation.NewEngine(h, mgr, logger)
	t.Cleanup(engine.Stop)
	WithAutomation(engine, mgr)(srv)

	if w := do(t, srv, "POST", "/api/automations", `{"lua_code":"x = 1"}`); w.Code != http.StatusBadRequest {
		t.Errorf("no name: status = %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/automations", `{"name":"Lights","lua_code":"x = 1"}`); w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", w.Code)
	}
	if engine.Running() != 0 {
		t.Errorf("disabled script running")
	}

	w := do(t, srv, "PUT", "/api/automations/lights", `{"lua_code":"y = 2","enabled":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update: status = %d: %s", w.Code, w.Body)
	}
	var script automation.Script
	json.Unmarshal(w.Body.Bytes(), &script)
	if script.Meta.Name != "Lights" || !script.Meta.Enabled || engine.Running() != 1 {
		t.Errorf("updated = %+v, running = %d", script, engine.Running())
	}

	w = do(t, srv, "GET", "/api/automations/lights", "")
	json.Unmarshal(w.Body.Bytes(), &script)
	if w.Code != http.StatusOK || script.LuaCode != "y = 2" {
		t.Errorf("get: %d %+v", w.Code, script)
	}
	if w := do(t, srv, "PUT", "/api/automations/nope", `{"name":"x"}`); w.Code != http.StatusNotFound {
		t.Errorf("update missing: status = %d", w.Code)
	}

	w = do(t, srv, "POST", "/api/automations/_inline/run", `{"lua_code":"log(\"a\") log(\"b\")"}`)
	var res automation.RunResult
	json.Unmarshal(w.Body.Bytes(), &res)
	if !res.OK || len(res.Logs) != 2 {
		t.Errorf("inline = %+v", res)
	}
	w = do(t, srv, "POST", "/api/automations/_inline/run", `{"lua_code":"error(\"boom\")"}`)
	res = automation.RunResult{}
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.OK || res.Error == "" {
		t.Errorf("failing inline = %+v", res)
	}
}
