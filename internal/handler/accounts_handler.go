package handler

import (
	"errors"
	"net/http"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Accounts Handlers
// ============================================================

func meHandler(identity *service.IdentityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me")
		defer span.End()

		user, err := identity.CurrentUser(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func listAccountsHandler(svc *service.AccountsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts")
		defer span.End()

		result, err := svc.ListAccounts(ctx, UserIDFromContext(ctx))
		if err != nil {
			var nf *domain.ErrNotFound
			if errors.As(err, &nf) {
				writeError(w, http.StatusNotFound, "no accounts found")
				return
			}
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func getAccountDetailHandler(svc *service.AccountDetailService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{bankId}")
		defer span.End()

		detail, err := svc.GetUserAccountDetail(ctx, UserIDFromContext(ctx), chi.URLParam(r, "bankId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func listTransactionsHandler(svc *service.AccountDetailService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{bankId}/transactions")
		defer span.End()

		page, pageSize, err := parsePagination(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		txs, err := svc.ListUserTransactions(ctx, UserIDFromContext(ctx), chi.URLParam(r, "bankId"), page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, txs)
	}
}
