//go:build !no_automation

package automation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "scripts"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestManagerListEmpty(t *testing.T) {
	m := newTestManager(t)
	scripts, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 0 {
		t.Errorf("list count = %d, want 0", len(scripts))
	}
}

func TestManagerSaveAndGet(t *testing.T) {
	m := newTestManager(t)

	saved, err := m.Save(&Script{
		Meta:    ScriptMeta{Name: "Night Mode", Description: "dim panels", Enabled: true},
		LuaCode: `log("hello")`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID != "night_mode" {
		t.Errorf("id = %q, want night_mode", saved.ID)
	}

	got, err := m.Get(saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Meta != saved.Meta {
		t.Errorf("meta = %+v, want %+v", got.Meta, saved.Meta)
	}
	if got.LuaCode != `log("hello")` {
		t.Errorf("lua_code = %q", got.LuaCode)
	}
}

func TestManagerSaveExistingID(t *testing.T) {
	m := newTestManager(t)

	saved, err := m.Save(&Script{ID: "my_script", Meta: ScriptMeta{Name: "My Script"}, LuaCode: `log("v1")`})
	if err != nil {
		t.Fatal(err)
	}
	saved.LuaCode = `log("v2")`
	if _, err := m.Save(saved); err != nil {
		t.Fatal(err)
	}

	got, err := m.Get("my_script")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.LuaCode, `log("v2")`) {
		t.Errorf("lua_code after update = %q", got.LuaCode)
	}

	if _, err := m.Save(&Script{ID: "../escape"}); err == nil {
		t.Error("path traversal id accepted")
	}
}

func TestManagerListSorted(t *testing.T) {
	m := newTestManager(t)
	for _, name := range []string{"Gamma", "Alpha", "Beta"} {
		if _, err := m.Save(&Script{Meta: ScriptMeta{Name: name, Enabled: true}}); err != nil {
			t.Fatal(err)
		}
	}
	// Not a script.
	os.WriteFile(filepath.Join(m.Dir(), "notes.txt"), []byte("x"), 0o644)

	scripts, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, s := range scripts {
		ids = append(ids, s.ID)
	}
	if strings.Join(ids, ",") != "alpha,beta,gamma" {
		t.Errorf("ids = %v", ids)
	}
}

func TestManagerDelete(t *testing.T) {
	m := newTestManager(t)
	saved, err := m.Save(&Script{Meta: ScriptMeta{Name: "ToDelete"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(saved.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(saved.ID); !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("get after delete: %v", err)
	}
	if err := m.Delete(saved.ID); !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("second delete: %v", err)
	}
	if err := m.Delete(".."); err == nil {
		t.Error("invalid id accepted")
	}
}

func TestManagerUniqueID(t *testing.T) {
	m := newTestManager(t)
	s1, err := m.Save(&Script{Meta: ScriptMeta{Name: "Dup"}})
	if err != nil {
		t.Fatal(err)
	}
	s2, err := m.Save(&Script{Meta: ScriptMeta{Name: "Dup"}})
	if err != nil {
		t.Fatal(err)
	}
	if s1.ID != "dup" || s2.ID != "dup_1" {
		t.Errorf("ids = %q, %q", s1.ID, s2.ID)
	}
	s3, _ := m.Save(&Script{Meta: ScriptMeta{Name: "!!!"}})
	if s3.ID != "script" {
		t.Errorf("unnamed id = %q", s3.ID)
	}
}

func TestParseScriptFile(t *testing.T) {
	m := newTestManager(t)
	content := `-- {"name":"Pump guard","description":"stop pump when soil is wet","enabled":true}

on("measurement", "00158D00012A3B4C", function(ev)
    if ev.value > 60 then device.set(ev.serial, "PwmVal", 0, 0) end
end)
`
	path := filepath.Join(m.Dir(), "pump.lua")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := m.Get("pump")
	if err != nil {
		t.Fatal(err)
	}
	if s.Meta.Name != "Pump guard" || s.Meta.Description != "stop pump when soil is wet" || !s.Meta.Enabled {
		t.Errorf("meta = %+v", s.Meta)
	}
	if !strings.HasPrefix(s.LuaCode, `on("measurement"`) {
		t.Errorf("lua_code = %q", s.LuaCode)
	}
}

func TestParseScriptWithoutHeader(t *testing.T) {
	m := newTestManager(t)
	if err := os.WriteFile(filepath.Join(m.Dir(), "plain.lua"), []byte("log(\"x\")\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := m.Get("plain")
	if err != nil {
		t.Fatal(err)
	}
	if s.Meta.Name != "plain" || !s.Meta.Enabled || s.LuaCode != "log(\"x\")\n" {
		t.Errorf("script = %+v", s)
	}
}

func TestSerializeScript(t *testing.T) {
	content := serializeScript(&Script{
		ID:      "test",
		Meta:    ScriptMeta{Name: "Test", Enabled: true},
		LuaCode: `log("hi")`,
	})
	want := "-- {\"name\":\"Test\",\"enabled\":true}\n\nlog(\"hi\")"
	if content != want {
		t.Errorf("got %q, want %q", content, want)
	}
}

func TestManagerCodeRoundTrip(t *testing.T) {
	m := newTestManager(t)
	cases := []string{
		"",
		"y = 2",
		"y = 2\n",
		"\n\nlocal x = 1\n\n",
		"-- comment\r\nlog(\"x\")",
	}
	for _, code := range cases {
		saved, err := m.Save(&Script{ID: "rt", Meta: ScriptMeta{Name: "rt"}, LuaCode: code})
		if err != nil {
			t.Fatal(err)
		}
		got, err := m.Get(saved.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.LuaCode != code {
			t.Errorf("lua_code = %q, want %q", got.LuaCode, code)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Bathroom Light", "bathroom_light"},
		{"hello world!", "hello_world"},
		{"", ""},
		{"  spaces  ", "spaces"},
		{"UPPER", "upper"},
		{strings.Repeat("abc ", 15), strings.Repeat("abc_", 9) + "abc"},
	}
	for _, tt := range tests {
		if got := slugify(tt.input); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
