package handler

import (
	"net/http"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/service"

	"go.uber.org/zap"
)

// GET /v1/home?id=<bankId>&page=<n>
func dashboardHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/home")
		defer span.End()

		page, err := queryInt(r, "page")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		dash, err := svc.GetDashboard(ctx, UserIDFromContext(ctx), r.URL.Query().Get("id"), page)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dash)
	}
}
