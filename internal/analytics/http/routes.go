package analytichttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/cashledger/internal/platform/httpx"
)

// MountRoutes registers cash-flow endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(h.rateLimit, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export limit reached, retry later")
		}),
	)

	r.Route("/finance/cashflow", func(r chi.Router) {
		r.Get("/", h.handleReport)
		r.Get("/dashboard", h.handleDashboard)
		r.Post("/installments/preview", h.handleInstallmentPreview)
		r.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/export.csv", h.handleCSV)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if user := strings.TrimSpace(r.Header.Get(headerUserID)); user != "" {
		return "user:" + user, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
