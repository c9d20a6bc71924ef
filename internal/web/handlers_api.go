package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"time"

	"thread-go-home/internal/api"
	"thread-go-home/internal/device"
	"thread-go-home/internal/hub"
	"thread-go-home/internal/mesh"
	"thread-go-home/internal/store"
	"thread-go-home/internal/wire"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

// allID is the envelope id of collections not tied to one device.
const allID = "all"

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	now := s.hub.Now()
	devs := s.hub.Registry().List()
	env := api.New[device.View](allID, nil)
	for _, d := range devs {
		env.AddItem(device.NewView(d, now))
	}
	s.writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	serial, ok := s.serialParam(w, r)
	if !ok {
		return
	}
	dev, ok := s.hub.Registry().Get(serial)
	if !ok {
		s.writeError(w, http.StatusNotFound, "device not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.Post[device.View]{Data: device.NewView(dev, s.hub.Now())})
}

type renameDeviceRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	FirmwareTag *string `json:"firmwareTag"`
}

func (s *Server) handleRenameDevice(w http.ResponseWriter, r *http.Request) {
	serial, ok := s.serialParam(w, r)
	if !ok {
		return
	}
	dev, ok := s.hub.Registry().Get(serial)
	if !ok {
		s.writeError(w, http.StatusNotFound, "device not found")
		return
	}

	var req renameDeviceRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	desc := dev.Record().Description
	if req.Description != nil {
		desc = *req.Description
	}

	dev, err := s.hub.SetName(serial, req.Name, desc)
	if err != nil {
		s.writeHubError(w, err)
		return
	}
	if req.FirmwareTag != nil {
		if dev, err = s.hub.SetFirmwareTag(serial, *req.FirmwareTag); err != nil {
			s.writeHubError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, api.Post[device.View]{Data: device.NewView(dev, s.hub.Now())})
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	serial, ok := s.serialParam(w, r)
	if !ok {
		return
	}
	if err := s.hub.Remove(serial); err != nil {
		s.writeHubError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	serial, ok := s.serialParam(w, r)
	if !ok {
		return
	}
	ms, err := s.hub.Registry().Measurements(serial)
	if err != nil {
		s.writeHubError(w, err)
		return
	}
	env := api.New(idOf(serial), ms)
	if n := len(ms); n > 0 && ms[n-1].Timestamp != nil {
		env.SetUpdated(*ms[n-1].Timestamp)
	}
	s.writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	serial, ok := s.serialParam(w, r)
	if !ok {
		return
	}
	ns, err := s.hub.Registry().Neighbors(serial)
	if err != nil {
		s.writeHubError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.New(idOf(serial), ns))
}

func (s *Server) handleConnected(w http.ResponseWriter, r *http.Request) {
	serial, ok := s.serialParam(w, r)
	if !ok {
		return
	}
	dev, ok := s.hub.Registry().Get(serial)
	if !ok {
		s.writeError(w, http.StatusNotFound, "device not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.New(idOf(serial), dev.Record().ConnectedDevices()))
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	serial, ok := s.serialParam(w, r)
	if !ok {
		return
	}
	ss, err := s.hub.Registry().Settings(serial)
	if err != nil {
		s.writeHubError(w, err)
		return
	}
	env := api.New(idOf(serial), ss)
	if len(ss) > 0 {
		latest := slices.MaxFunc(ss, func(a, b wire.Setting) int { return int(a.Updated) - int(b.Updated) })
		env.SetUpdated(time.Unix(int64(latest.Updated), 0).UTC())
	}
	s.writeJSON(w, http.StatusOK, env)
}

// handlePushSetting accepts {apiVersion, data: setting} and forwards the
// setting to the device. The device's next settings report confirms it.
func (s *Server) handlePushSetting(w http.ResponseWriter, r *http.Request) {
	serial, ok := s.serialParam(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	setting, err := api.DecodePost[wire.Setting](body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if info, ok := api.LookupSettingType(setting.Type); ok {
		if setting.Value < info.MinValue || setting.Value > info.MaxValue {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be between %d and %d", info.Name, info.MinValue, info.MaxValue))
			return
		}
	}

	if err := s.hub.PushSetting(r.Context(), serial, setting); err != nil {
		s.writeHubError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.Post[wire.Setting]{Data: setting})
}

func (s *Server) handleSettingTypes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.New(allID, api.SettingTypeCatalog()))
}

// handleNetwork reads the local mesh stack and returns its state together
// with the stored network configuration, if any.
func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	st, err := s.hub.RefreshMesh(r.Context())
	if err != nil {
		s.writeHubError(w, err)
		return
	}
	var out api.PostList
	out.Add(*st)
	if cfg, err := s.hub.NetworkConfig(); err == nil {
		out.Add(*cfg)
	} else if !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("get network config", "err", err)
	}
	s.writeJSON(w, http.StatusOK, &out)
}

func (s *Server) handleNetworkGraph(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.Post[device.Graph]{Data: s.hub.Registry().Graph(s.hub.Now())})
}

func (s *Server) handleGetNetworkConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.hub.NetworkConfig()
	if err != nil {
		s.writeHubError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Post[mesh.NetConfig]{Data: *cfg})
}

func (s *Server) handlePutNetworkConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg, err := api.DecodePost[mesh.NetConfig](body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !cfg.HasName() && !cfg.HasTLV() {
		s.writeError(w, http.StatusBadRequest, "networkName or tlv is required")
		return
	}
	if err := s.hub.SetNetworkConfig(&cfg); err != nil {
		s.writeHubError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Post[mesh.NetConfig]{Data: cfg})
}

func (s *Server) handleGetJoiner(w http.ResponseWriter, r *http.Request) {
	j, err := s.hub.Joiner()
	if err != nil {
		s.writeHubError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Post[mesh.JoinerData]{Data: j})
}

func (s *Server) handlePutJoiner(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	j, err := api.DecodePost[mesh.JoinerData](body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if j.Empty() {
		s.writeError(w, http.StatusBadRequest, "euid64 or pskd is required")
		return
	}
	if err := j.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.hub.SetJoiner(j); err != nil {
		s.writeHubError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Post[mesh.JoinerData]{Data: j})
}

// serialParam parses the {id} path value, writing 400 on failure.
func (s *Server) serialParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	serial, err := device.ParseSerial(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return serial, true
}

func idOf(serial uint64) string {
	return strconv.FormatUint(serial, 10)
}

// writeHubError maps hub and store errors to HTTP status codes.
func (s *Server) writeHubError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrUnknownDevice):
		s.writeError(w, http.StatusNotFound, "device not found")
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, mesh.ErrUnavailable), errors.Is(err, hub.ErrNoTransport):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}
