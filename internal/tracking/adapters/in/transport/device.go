package transport

import (
	"net/http"

	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/domain"

	"github.com/gorilla/mux"
)

// DeviceSink receives readings from the browser page that feeds a web-platform tracker.
type DeviceSink interface {
	Report(pos domain.Position) error
	SetPermission(state domain.PermissionState)
}

type DeviceHandler struct {
	sink DeviceSink
	log  *logger.Logger
}

func NewDeviceHandler(sink DeviceSink, log *logger.Logger) *DeviceHandler {
	return &DeviceHandler{sink: sink, log: log}
}

// ReportPosition handles POST /device/position
func (h *DeviceHandler) ReportPosition(w http.ResponseWriter, r *http.Request) {
	var pos domain.Position
	if err := readJSON(r, &pos); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pos.IsStale = false
	if err := h.sink.Report(pos); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReportPermission handles POST /device/permission
func (h *DeviceHandler) ReportPermission(w http.ResponseWriter, r *http.Request) {
	var req DevicePermissionRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	state, err := domain.ParsePermissionState(req.State)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.sink.SetPermission(state)
	h.log.Info(logger.Entry{
		Action:    "device_permission_reported",
		Message:   string(state),
		RequestID: GetRequestIDFromContext(r.Context()),
	})
	w.WriteHeader(http.StatusNoContent)
}

// DeviceRouter serves the device ingestion endpoints on their own listener.
func DeviceRouter(h *DeviceHandler, log *logger.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestID, Logging(log))
	r.HandleFunc("/device/position", h.ReportPosition).Methods(http.MethodPost)
	r.HandleFunc("/device/permission", h.ReportPermission).Methods(http.MethodPost)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
	}).Methods(http.MethodGet)
	return r
}
