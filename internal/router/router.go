// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arashfz/cinebook/internal/handler"
	"github.com/arashfz/cinebook/internal/middleware"
	"github.com/arashfz/cinebook/internal/model"
)

// RegisterRoutes registers routes that do not require authentication:
// the health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the authentication endpoints. Unauthenticated
// operations live under /v1/auth; the authenticated profile endpoint
// lives under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterUsers registers the version-guarded user endpoints. Both are
// authenticated; the handler itself enforces admin-or-self access.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/users")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.GET("/:id", u.Get)
	// Mutations share the distributed rate-limit budget.
	g.PUT("/:id", u.Update, limiter)
}

// RegisterScreenings registers the public catalog routes and the
// admin-only create and delete operations.
func RegisterScreenings(e *echo.Echo, s *handler.ScreeningHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	e.GET("/v1/screenings", s.List)
	e.GET("/v1/screenings/:id", s.Get)

	admin := e.Group("/v1/admin/screenings")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("", s.Create, limiter)
	admin.DELETE("/:id", s.Delete, limiter)
}

// RegisterReservations registers the seat-map reads and the booking
// lifecycle. Everything here requires a valid access token since even
// the seat map identifies holders.
func RegisterReservations(e *echo.Echo, r *handler.ReservationHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin, model.RoleCustomer))

	g.GET("/screenings/:id/seatmap", r.SeatMap)
	g.GET("/screenings/:id/availability", r.CheckAvailability)
	g.GET("/bookings", r.MyBookings)

	g.POST("/screenings/:id/reservations", r.Reserve, limiter)
	g.DELETE("/screenings/:id/seats", r.CancelBySeat, limiter)
	g.DELETE("/bookings/:id", r.Cancel, limiter)
}
