package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Dev Tools Handlers
// ============================================================

type devTokenRequest struct {
	UserID string `json:"user_id"`
}

type devTokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// devTokenHandler issues an access token for an existing user. Only mounted
// when DEV_AUTH=true.
func devTokenHandler(identity *service.IdentityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dev/token")
		defer span.End()

		var req devTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID == "" {
			handleServiceError(w, &domain.ErrValidation{Field: "user_id", Message: "required"}, logger)
			return
		}

		if _, err := identity.CurrentUser(ctx, req.UserID); err != nil {
			var unauthorized *domain.ErrUnauthorized
			if errors.As(err, &unauthorized) {
				err = &domain.ErrNotFound{Resource: "user", ID: req.UserID}
			}
			handleServiceError(w, err, logger)
			return
		}

		token, expires, err := identity.IssueAccessToken(req.UserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		logger.Info("dev token issued", zap.String("user_id", req.UserID))
		writeJSON(w, http.StatusOK, devTokenResponse{AccessToken: token, ExpiresAt: expires})
	}
}
