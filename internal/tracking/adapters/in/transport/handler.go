package transport

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"brillprime/internal/shared/auth"
	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/application/ports/in"
	"brillprime/internal/tracking/domain"

	"github.com/gorilla/mux"
)

// Addresser resolves display addresses; it never fails.
type Addresser interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) string
}

// Services are the use cases behind the API. Addresser may be nil.
type Services struct {
	UpdateLocation in.UpdateLiveLocationUseCase
	Live           in.LiveLocationQuery
	History        in.LocationHistoryUseCase
	Deliveries     in.DeliveryUseCase
	Routes         in.RouteOptimizerUseCase
	Addresser      Addresser
}

type Handler struct {
	svc Services
	log *logger.Logger
}

func NewHandler(svc Services, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	status := statusFor(err)
	entry := logger.Entry{
		Action:    action,
		Message:   err.Error(),
		RequestID: GetRequestIDFromContext(r.Context()),
		Error:     &logger.ErrObj{Msg: err.Error()},
	}
	if status >= http.StatusInternalServerError {
		h.log.Error(entry)
	} else {
		h.log.Warn(entry)
	}
	respondError(w, status, err.Error())
}

// PutLiveLocation handles PUT /location/live
func (h *Handler) PutLiveLocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "user_id not found in context")
		return
	}

	var req in.UpdateLiveLocationInput
	if err := readJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = userID

	pos, err := h.svc.UpdateLocation.Execute(r.Context(), req)
	if err != nil {
		h.fail(w, r, "put_live_location_failed", err)
		return
	}
	respondJSON(w, http.StatusOK, newLiveLocationResponse(userID, pos))
}

// GetLiveLocation handles GET /location/live/{user_id}?address=true
func (h *Handler) GetLiveLocation(w http.ResponseWriter, r *http.Request) {
	subjectID := mux.Vars(r)["user_id"]

	pos, err := h.svc.Live.GetLiveLocation(r.Context(), subjectID)
	if err != nil {
		h.fail(w, r, "get_live_location_failed", err)
		return
	}

	resp := newLiveLocationResponse(subjectID, pos)
	if wantAddress, _ := strconv.ParseBool(r.URL.Query().Get("address")); wantAddress && h.svc.Addresser != nil {
		resp.Address = h.svc.Addresser.ReverseGeocode(r.Context(), pos.Latitude, pos.Longitude)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetHistory handles GET /location/history/{user_id}?limit=
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	subjectID := mux.Vars(r)["user_id"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	items, err := h.svc.History.History(r.Context(), subjectID, limit)
	if err != nil {
		h.fail(w, r, "get_history_failed", err)
		return
	}
	respondJSON(w, http.StatusOK, HistoryResponse{UserID: subjectID, Count: len(items), Positions: items})
}

// OptimizeRoute handles POST /routes/optimize
func (h *Handler) OptimizeRoute(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRouteRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.Routes.Optimize(r.Context(), req.Stops)
	if err != nil {
		h.fail(w, r, "optimize_route_failed", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// AcceptDelivery handles POST /deliveries. A driver can only accept for themselves.
func (h *Handler) AcceptDelivery(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	var req in.AcceptDeliveryInput
	if err := readJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if GetRoleFromContext(r.Context()) == auth.RoleDriver {
		req.DriverID = userID
	}

	d, err := h.svc.Deliveries.Accept(r.Context(), req)
	if err != nil {
		h.fail(w, r, "accept_delivery_failed", err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

// ListDeliveries handles GET /deliveries. Admins see all; others see the ones they take part in.
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	isAdmin := GetRoleFromContext(r.Context()) == auth.RoleAdmin

	items := make([]domain.ActiveDelivery, 0)
	for _, d := range h.svc.Deliveries.List() {
		if isAdmin || participant(d, userID) {
			items = append(items, d)
		}
	}
	respondJSON(w, http.StatusOK, DeliveryListResponse{Count: len(items), Deliveries: items})
}

// GetDelivery handles GET /deliveries/{id}
func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	d, err := h.svc.Deliveries.Get(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, "get_delivery_failed", err)
		return
	}
	if GetRoleFromContext(r.Context()) != auth.RoleAdmin && !participant(d, userID) {
		// do not leak existence
		h.fail(w, r, "get_delivery_forbidden", domain.ErrDeliveryNotFound)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func participant(d domain.ActiveDelivery, userID string) bool {
	return userID != "" && (strings.EqualFold(d.DriverID, userID) || strings.EqualFold(d.ConsumerID, userID))
}
