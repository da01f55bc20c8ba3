package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/catering-system/internal/middleware"
	"github.com/mmeshcher/catering-system/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса заказов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	staff := custommiddleware.RequireRole(model.RoleEmployee, model.RoleAdmin)
	adminOnly := custommiddleware.RequireRole(model.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)
		r.Get("/menus", h.ListMenus)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.PlaceOrder)
				r.Get("/", h.GetOrders)
				r.Get("/{number}", h.GetOrder)
				r.Post("/{number}/cancel", h.CancelOrder)
				r.Post("/{number}/review", h.CreateReview)
			})

			r.Route("/staff", func(r chi.Router) {
				r.Use(staff)

				r.Get("/orders", h.GetOrdersByStatus)
				r.Put("/orders/{number}/status", h.AdvanceStatus)
				r.Post("/orders/{number}/equipment-returned", h.MarkEquipmentReturned)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(adminOnly)

				r.Post("/menus", h.CreateMenu)
				r.Put("/users/{id}/role", h.SetUserRole)
				r.Post("/orders/{number}/cancel", h.AdminCancelOrder)
				r.Post("/sweeps/equipment", h.RunEquipmentSweep)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
