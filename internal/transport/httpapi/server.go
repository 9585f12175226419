package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"skybite/internal/auth"
	"skybite/internal/delivery"
	"skybite/internal/domain"
	"skybite/internal/transport"
)

type Server struct {
	svc  *delivery.Service
	orch *delivery.Orchestrator
	auth *auth.Authenticator
}

func NewServer(svc *delivery.Service, orch *delivery.Orchestrator, authenticator *auth.Authenticator) http.Handler {
	s := &Server{svc: svc, orch: orch, auth: authenticator}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Post("/auth/token", s.handleIssueToken)

	r.Route("/restaurant", func(r chi.Router) {
		r.Use(s.requireRole(domain.RoleRestaurant))
		r.Post("/orders", s.handleSubmitOrder)
		r.Get("/orders/{id}", s.handleGetOrder)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(s.requireRole(domain.RoleCustomer))
		r.Get("/{id}", s.handleGetOrder)
		r.Post("/{id}/confirm", s.handleConfirmDelivery)
		r.Post("/{id}/cancel", s.handleCustomerCancel)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireRole(domain.RoleAdmin))
		r.Get("/orders", s.handleAdminListOrders)
		r.Post("/orders/{id}/assign", s.handleAdminAssign)
		r.Post("/orders/{id}/reassign", s.handleAdminReassign)
		r.Post("/orders/{id}/dispatch", s.handleAdminDispatch)
		r.Post("/orders/{id}/cancel", s.handleAdminCancel)
		r.Get("/drones", s.handleAdminListDrones)
		r.Post("/drones", s.handleAdminRegisterDrone)
		r.Post("/drones/{id}/stop", s.handleAdminStopSimulation)
		r.Post("/drones/{id}/maintenance", s.handleAdminDroneMaintenance)
		r.Post("/drones/{id}/available", s.handleAdminDroneAvailable)
	})

	return r
}

func (s *Server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeError(w, domain.ErrUnauthorized)
				return
			}
			claims, err := s.auth.ParseToken(token)
			if err != nil {
				writeError(w, domain.ErrUnauthorized)
				return
			}
			if claims.Role != role {
				writeError(w, domain.ErrForbidden)
				return
			}
			ctx := auth.ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	if req.Name == "" || !domain.ValidateRole(req.Role) {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	token, exp, err := s.auth.IssueToken(req.Name, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": exp,
	})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	var req struct {
		CustomerID string             `json:"customer_id"`
		Pickup     transport.Location `json:"pickup"`
		Dropoff    transport.Location `json:"dropoff"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	if req.CustomerID == "" {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	order, err := s.svc.SubmitOrder(r.Context(), claims.Subject, req.CustomerID, toDomainLocation(req.Pickup), toDomainLocation(req.Dropoff))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transport.FromOrder(order))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	orderID := chi.URLParam(r, "id")
	view, err := s.svc.GetOrderView(r.Context(), claims.Subject, claims.Role, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromOrderView(view))
}

func (s *Server) handleConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	orderID := chi.URLParam(r, "id")
	// Ownership check before the state change.
	if _, err := s.svc.GetOrderView(r.Context(), claims.Subject, claims.Role, orderID); err != nil {
		writeError(w, err)
		return
	}
	order, err := s.orch.ConfirmDelivery(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromOrder(order))
}

func (s *Server) handleCustomerCancel(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	orderID := chi.URLParam(r, "id")
	if _, err := s.svc.GetOrderView(r.Context(), claims.Subject, claims.Role, orderID); err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidInput)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "cancelled by customer"
	}
	order, err := s.orch.CancelOrder(r.Context(), orderID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromOrder(order))
}

func (s *Server) handleAdminAssign(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req struct {
		DroneID string `json:"drone_id"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidInput)
			return
		}
	}
	var order *domain.Order
	var err error
	if req.DroneID == "" {
		order, err = s.svc.AutoAssign(r.Context(), orderID)
	} else {
		order, err = s.svc.ManualAssign(r.Context(), orderID, req.DroneID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromOrder(order))
}

func (s *Server) handleAdminReassign(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req struct {
		FromDroneID string `json:"from_drone_id"`
		ToDroneID   string `json:"to_drone_id"`
		Reason      string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	if req.FromDroneID == "" || req.ToDroneID == "" {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	order, err := s.svc.Reassign(r.Context(), orderID, req.FromDroneID, req.ToDroneID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromOrder(order))
}

func (s *Server) handleAdminDispatch(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req struct {
		DroneID string `json:"drone_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	if req.DroneID == "" {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	order, err := s.orch.StartSimulation(r.Context(), orderID, req.DroneID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromOrder(order))
}

func (s *Server) handleAdminCancel(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidInput)
			return
		}
	}
	order, err := s.orch.CancelOrder(r.Context(), orderID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromOrder(order))
}

func (s *Server) handleAdminListOrders(w http.ResponseWriter, r *http.Request) {
	statusParam := r.URL.Query().Get("status")
	var status *domain.OrderStatus
	if statusParam != "" {
		st := domain.OrderStatus(statusParam)
		status = &st
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	views, err := s.svc.AdminListOrders(r.Context(), delivery.OrderFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]transport.OrderViewResponse, 0, len(views))
	for _, view := range views {
		resp = append(resp, transport.FromOrderView(view))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminListDrones(w http.ResponseWriter, r *http.Request) {
	drones, err := s.svc.AdminListDrones(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]transport.DroneResponse, 0, len(drones))
	for _, drone := range drones {
		resp = append(resp, transport.FromDrone(drone))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminRegisterDrone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID           string             `json:"id"`
		HomeLocation transport.Location `json:"home_location"`
		SpeedKmh     float64            `json:"speed_kmh"`
		BatteryLevel int                `json:"battery_level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	drone, err := s.svc.RegisterDrone(r.Context(), req.ID, toDomainLocation(req.HomeLocation), req.SpeedKmh, req.BatteryLevel)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transport.FromDrone(drone))
}

func (s *Server) handleAdminStopSimulation(w http.ResponseWriter, r *http.Request) {
	droneID := chi.URLParam(r, "id")
	drone, err := s.orch.StopSimulation(r.Context(), droneID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromDrone(drone))
}

func (s *Server) handleAdminDroneMaintenance(w http.ResponseWriter, r *http.Request) {
	droneID := chi.URLParam(r, "id")
	drone, err := s.svc.MarkDroneMaintenance(r.Context(), droneID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromDrone(drone))
}

func (s *Server) handleAdminDroneAvailable(w http.ResponseWriter, r *http.Request) {
	droneID := chi.URLParam(r, "id")
	drone, err := s.svc.MarkDroneAvailable(r.Context(), droneID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromDrone(drone))
}

func mustClaims(r *http.Request) *auth.Claims {
	claims, _ := auth.ClaimsFromContext(r.Context())
	return claims
}

func toDomainLocation(loc transport.Location) domain.Location {
	return domain.Location{Lat: loc.Lat, Lng: loc.Lng}
}
