package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"thread-go-home/internal/automation"
)

// scriptBody is the JSON accepted when creating or updating a script.
type scriptBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LuaCode     string `json:"lua_code"`
	Enabled     bool   `json:"enabled"`
}

// haveScripts writes 503 and returns false when no script manager is set.
func (s *Server) haveScripts(w http.ResponseWriter) bool {
	if s.scriptMgr == nil {
		s.writeError(w, http.StatusServiceUnavailable, "automations not available")
		return false
	}
	return true
}

func (s *Server) decodeScript(w http.ResponseWriter, r *http.Request) (scriptBody, bool) {
	var body scriptBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return body, false
	}
	return body, true
}

// lookupScript loads the {id} script, writing 404 if it does not exist.
func (s *Server) lookupScript(w http.ResponseWriter, r *http.Request) (*automation.Script, bool) {
	script, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "script not found")
		return nil, false
	}
	return script, true
}

// saveScript persists script and brings the engine in line with its
// enabled flag.
func (s *Server) saveScript(w http.ResponseWriter, script *automation.Script, status int) {
	saved, err := s.scriptMgr.Save(script)
	if err != nil {
		s.logger.Error("save script", "id", script.ID, "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if s.autoEngine != nil {
		if saved.Meta.Enabled {
			if err := s.autoEngine.ReloadScript(saved.ID); err != nil {
				s.logger.Error("start script", "id", saved.ID, "err", err)
			}
		} else {
			s.autoEngine.StopScript(saved.ID)
		}
	}
	s.writeJSON(w, status, saved)
}

func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	if s.scriptMgr == nil {
		s.writeJSON(w, http.StatusOK, []*automation.Script{})
		return
	}
	scripts, err := s.scriptMgr.List()
	if err != nil {
		s.logger.Error("list scripts", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, scripts)
}

func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	if !s.haveScripts(w) {
		return
	}
	if script, ok := s.lookupScript(w, r); ok {
		s.writeJSON(w, http.StatusOK, script)
	}
}

func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	if !s.haveScripts(w) {
		return
	}
	body, ok := s.decodeScript(w, r)
	if !ok {
		return
	}
	if body.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	s.saveScript(w, &automation.Script{
		Meta:    automation.ScriptMeta{Name: body.Name, Description: body.Description, Enabled: body.Enabled},
		LuaCode: body.LuaCode,
	}, http.StatusCreated)
}

func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	if !s.haveScripts(w) {
		return
	}
	script, ok := s.lookupScript(w, r)
	if !ok {
		return
	}
	body, ok := s.decodeScript(w, r)
	if !ok {
		return
	}
	if body.Name != "" {
		script.Meta.Name = body.Name
	}
	script.Meta.Description = body.Description
	script.Meta.Enabled = body.Enabled
	script.LuaCode = body.LuaCode
	s.saveScript(w, script, http.StatusOK)
}

func (s *Server) handleToggleAutomation(w http.ResponseWriter, r *http.Request) {
	if !s.haveScripts(w) {
		return
	}
	script, ok := s.lookupScript(w, r)
	if !ok {
		return
	}
	script.Meta.Enabled = !script.Meta.Enabled
	s.saveScript(w, script, http.StatusOK)
}

func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	if !s.haveScripts(w) {
		return
	}
	id := r.PathValue("id")
	if s.autoEngine != nil {
		s.autoEngine.StopScript(id)
	}
	err := s.scriptMgr.Delete(id)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, automation.ErrScriptNotFound):
		s.writeError(w, http.StatusNotFound, "script not found")
	default:
		s.logger.Error("delete script", "id", id, "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// handleRunAutomation runs a saved script once. The id "_inline" runs the
// lua_code of the request body instead.
func (s *Server) handleRunAutomation(w http.ResponseWriter, r *http.Request) {
	if s.autoEngine == nil {
		s.writeError(w, http.StatusServiceUnavailable, "automation engine not available")
		return
	}
	id := r.PathValue("id")
	if id != "_inline" {
		s.writeJSON(w, http.StatusOK, s.autoEngine.RunScript(id))
		return
	}
	body, ok := s.decodeScript(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.autoEngine.RunLuaCode(body.LuaCode))
}
