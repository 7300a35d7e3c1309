package transport

import (
	"net/http"

	"brillprime/internal/shared/auth"
	"brillprime/internal/shared/logger"

	"github.com/gorilla/mux"
)

// NewRouter wires the API. ws may be nil when the hub is served elsewhere.
func NewRouter(h *Handler, jwtService *auth.JWTService, limiter *RateLimiter, ws http.HandlerFunc, log *logger.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestID, Logging(log))

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	if ws != nil {
		// authenticates in the first message, not via headers
		r.HandleFunc("/ws", ws)
	}

	authed := r.NewRoute().Subrouter()
	authed.Use(JWTMiddleware(jwtService, log))

	authed.Handle("/location/live", limiter.Middleware(http.HandlerFunc(h.PutLiveLocation))).Methods(http.MethodPut)

	authed.HandleFunc("/location/live/{user_id}", h.GetLiveLocation).Methods(http.MethodGet)
	authed.HandleFunc("/location/history/{user_id}", h.GetHistory).Methods(http.MethodGet)
	authed.HandleFunc("/routes/optimize", h.OptimizeRoute).Methods(http.MethodPost)
	authed.HandleFunc("/deliveries", h.ListDeliveries).Methods(http.MethodGet)
	authed.Handle("/deliveries", RequireRole(auth.RoleDriver, auth.RoleMerchant, auth.RoleAdmin)(http.HandlerFunc(h.AcceptDelivery))).Methods(http.MethodPost)
	authed.HandleFunc("/deliveries/{id}", h.GetDelivery).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	log.Info(logger.Entry{Action: "api_routes_registered", Message: "tracking api routes registered"})
	return r
}
