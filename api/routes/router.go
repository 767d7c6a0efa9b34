package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gebeya-market/gebeya-backend/api/controllers"
	ordercontrollers "github.com/gebeya-market/gebeya-backend/api/controllers/orders"
	"github.com/gebeya-market/gebeya-backend/api/middleware"
	checkoutsvc "github.com/gebeya-market/gebeya-backend/internal/checkout"
	"github.com/gebeya-market/gebeya-backend/internal/listings"
	"github.com/gebeya-market/gebeya-backend/internal/notifications"
	"github.com/gebeya-market/gebeya-backend/internal/orders"
	"github.com/gebeya-market/gebeya-backend/internal/payments"
	"github.com/gebeya-market/gebeya-backend/internal/payoutmethods"
	"github.com/gebeya-market/gebeya-backend/internal/reviews"
	"github.com/gebeya-market/gebeya-backend/internal/settlements"
	"github.com/gebeya-market/gebeya-backend/pkg/config"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
	"github.com/gebeya-market/gebeya-backend/pkg/metrics"
	pkgredis "github.com/gebeya-market/gebeya-backend/pkg/redis"
)

// Dependencies carries everything the HTTP surface is built from. Nil
// services produce 500s on their routes rather than panics; a nil Redis
// disables idempotency and throttling.
type Dependencies struct {
	Pingers  map[string]controllers.Pinger
	Redis    *pkgredis.Client
	Syncer   middleware.IdentitySyncer
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTPMetrics
	Stream   controllers.UnreadStreamer

	Listings      listings.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Payments      payments.Service
	PayoutMethods payoutmethods.Service
	Settlements   settlements.Service
	Reviews       reviews.Service
	Notifications notifications.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
		middleware.CORS(cfg.CORS),
	)

	var (
		idempotency    = middleware.NewIdempotency(nil, logg)
		verifyThrottle = func(next http.Handler) http.Handler { return next }
	)
	if deps.Redis != nil {
		idempotency = middleware.NewIdempotency(deps.Redis, logg)
		verifyThrottle = middleware.Throttle(middleware.NewThrottlePolicy(
			"payout_verification",
			cfg.RateLimit.VerificationWindow,
			cfg.RateLimit.VerificationIPLimit,
			cfg.RateLimit.VerificationUserLimit,
		), deps.Redis, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(middleware.NewIPRateLimiter(cfg.RateLimit), logg))
			r.Get("/listings/{listingId}", controllers.GetListing(deps.Listings, logg))
			r.Get("/reviews", controllers.ListReviews(deps.Reviews, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Syncer, logg))

			r.Route("/orders", func(r chi.Router) {
				r.With(middleware.RequireRole(logg, enums.RoleBuyer), idempotency.With(middleware.IdempotentCheckout)).Post("/", ordercontrollers.Create(deps.Checkout, logg))
				r.Get("/", ordercontrollers.List(deps.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
				r.Get("/{orderId}/history", ordercontrollers.History(deps.Orders, logg))
				r.Get("/{orderId}/payment-events", ordercontrollers.PaymentEvents(deps.Payments, logg))
				r.With(idempotency.With(middleware.IdempotentDaily)).Patch("/{orderId}/status", ordercontrollers.UpdateStatus(deps.Orders, logg))
				r.With(idempotency.With(middleware.IdempotentWeekly)).Patch("/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, logg))
			})

			r.Get("/payments", controllers.ListPayments(deps.Payments, logg))

			r.Route("/payout-methods", func(r chi.Router) {
				r.With(middleware.RequireRole(logg, enums.RoleAdmin)).Get("/owner/{ownerId}", controllers.ListPayoutMethodsForOwner(deps.PayoutMethods, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, enums.RoleFarmer))
					r.Get("/", controllers.ListPayoutMethods(deps.PayoutMethods, logg))
					r.With(idempotency.With(middleware.IdempotentDaily)).Post("/", controllers.AddPayoutMethod(deps.PayoutMethods, logg))
					r.Delete("/{methodId}", controllers.RemovePayoutMethod(deps.PayoutMethods, logg))
					r.With(verifyThrottle, idempotency.With(middleware.IdempotentDaily)).Post("/{methodId}/verification", controllers.RequestPayoutVerification(deps.PayoutMethods, logg))
					r.With(verifyThrottle).Put("/{methodId}/verify", controllers.ConfirmPayoutVerification(deps.PayoutMethods, logg))
				})
			})

			r.Route("/settlements", func(r chi.Router) {
				r.With(middleware.RequireRole(logg, enums.RoleFarmer), idempotency.With(middleware.IdempotentWeekly)).Post("/", controllers.RequestSettlement(deps.Settlements, logg))
				r.With(middleware.RequireRole(logg, enums.RoleFarmer, enums.RoleAdmin)).Get("/", controllers.ListSettlements(deps.Settlements, logg))
			})

			// GET /reviews is public; a mounted subrouter here would shadow it.
			r.With(middleware.RequireRole(logg, enums.RoleBuyer), idempotency.With(middleware.IdempotentDaily)).Post("/reviews", controllers.SubmitReview(deps.Reviews, logg))
			r.Get("/reviews/mine", controllers.ListMyReviews(deps.Reviews, logg))
			r.Get("/reviews/eligibility", controllers.ReviewEligibility(deps.Reviews, logg))
			r.Delete("/reviews/{reviewId}", controllers.DeleteReview(deps.Reviews, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Get("/unread-count", controllers.UnreadNotificationCount(deps.Notifications, logg))
				r.Get("/stream", controllers.StreamUnreadCount(deps.Notifications, deps.Stream, logg))
				r.With(idempotency.With(middleware.IdempotentDaily)).Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
				r.With(idempotency.With(middleware.IdempotentDaily)).Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
				r.With(idempotency.With(middleware.IdempotentDaily)).Post("/settlements/{settlementId}/complete", controllers.CompleteSettlement(deps.Settlements, logg))
				r.With(idempotency.With(middleware.IdempotentDaily)).Post("/settlements/{settlementId}/fail", controllers.FailSettlement(deps.Settlements, logg))
				r.With(idempotency.With(middleware.IdempotentWeekly)).Post("/orders/{orderId}/refund", controllers.RefundOrder(deps.Settlements, logg))
			})
		})
	})

	return r
}
