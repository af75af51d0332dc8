package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/natnael6825/ecctest/internal/config"
	"github.com/natnael6825/ecctest/internal/handlers"
	applog "github.com/natnael6825/ecctest/internal/log"
	"github.com/natnael6825/ecctest/internal/services"
	"github.com/natnael6825/ecctest/internal/session"
)

// NewRouter builds the API. Background work started here stops when ctx is
// done.
func NewRouter(ctx context.Context, cfg config.Config, cache services.Cache, sessions session.Store, lockout session.Lockout) http.Handler {
	api := handlers.New(cfg, cache, sessions, lockout)
	ips := newProxies(cfg.TrustedProxies)
	applog.ClientIP = ips.clientIP

	r := chi.NewRouter()
	r.Use(withCORS(cfg.AllowedOrigins))
	r.Use(withRequestID)
	r.Use(withRateLimit(ctx, cfg.RateLimitPerMin, cfg.RateLimitBurst, ips.clientIP))
	r.Use(withLogging)
	r.Use(withRecovery)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", api.Health)
		r.Post("/auth/login", api.Login)
		r.Post("/auth/logout", api.Logout)
		r.Get("/categories", api.Categories)

		r.Post("/users/otp", api.SendOTP)
		r.Post("/users/otp/verify", api.VerifyOTP)

		// Views are counted from the public post pages, which carry no session.
		r.Post("/posts/{id}/views", api.RecordPostView)

		r.Group(func(r chi.Router) {
			r.Use(api.RequireSession)

			r.Route("/analytics", func(r chi.Router) {
				r.Get("/summary", api.Summary)
				r.Get("/offers/trend", api.OfferTrend)
				r.Get("/views/trend", api.ViewTrend)
				r.Get("/ratio/trend", api.RatioTrend)
				r.Get("/ratio/products", api.ProductRatios)
				r.Get("/gaps", api.Gaps)
				r.Get("/top-users", api.TopUsers)
			})

			r.Get("/offers", api.ListOffers)
			r.Get("/offers/{id}", api.OfferByID)
			r.Post("/categories/{category}/offers", api.CreateOffer)
			r.Post("/categories/{category}/offers/{id}", api.UpdateOffer)
			r.Post("/categories/{category}/offers/{id}/activation", api.SetOfferActivation)

			r.Get("/categories/{category}/products", api.Products)
			r.Post("/categories/{category}/products", api.CreateProduct)
			r.Put("/categories/{category}/products/{id}", api.EditProduct)
			r.Delete("/categories/{category}/products/{id}", api.DeleteProduct)
			r.Get("/categories/{category}/products/{id}/properties", api.ProductProperties)
			r.Get("/categories/{category}/products/{id}/properties/{propertyID}/values", api.PropertyValues)
			r.Post("/categories/{category}/products/{id}/properties/{propertyID}/values", api.CreatePropertyValue)
			r.Post("/categories/{category}/properties", api.CreateProperty)
			r.Put("/categories/{category}/property-values/{id}", api.EditPropertyValue)
			r.Get("/product-values", api.ProductValues)

			r.Get("/posts", api.ListPosts)
			r.Post("/posts", api.CreatePost)
			r.Post("/posts/send", api.SendPosts)
			r.Put("/posts/{id}", api.EditPost)
			r.Delete("/posts/{id}", api.DeletePost)

			r.Get("/users", api.ListUsers)
			r.Post("/users/activation", api.SetUserActivation)
			r.Post("/admins", api.RegisterAdmin)

			r.Get("/exchange-rates", api.ListExchangeRates)
			r.Post("/exchange-rates", api.CreateExchangeRate)
			r.Put("/exchange-rates/{id}", api.UpdateExchangeRate)

			r.Post("/uploads", api.Upload)
		})
	})
	return r
}
