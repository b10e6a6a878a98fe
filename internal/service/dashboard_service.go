package service

import (
	"context"
	"errors"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// DashboardService assembles the home view: the current user, their account
// aggregate and one selected account with a page of its merged feed.
type DashboardService struct {
	identity *IdentityService
	accounts *AccountsService
	details  *AccountDetailService
	logger   *zap.Logger
}

// NewDashboardService creates the dashboard service.
func NewDashboardService(identity *IdentityService, accounts *AccountsService, details *AccountDetailService, logger *zap.Logger) *DashboardService {
	return &DashboardService{identity: identity, accounts: accounts, details: details, logger: logger}
}

// GetDashboard builds the home view for userID. bankID selects the account to
// expand; when empty the first fetched account is used. A user with no linked
// banks gets a dashboard with an empty aggregate.
func (s *DashboardService) GetDashboard(ctx context.Context, userID, bankID string, page int) (*domain.Dashboard, error) {
	ctx, span := tracer.Start(ctx, "DashboardService.GetDashboard")
	defer span.End()

	user, err := s.identity.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	dash := &domain.Dashboard{User: user}

	accounts, err := s.accounts.ListAccounts(ctx, userID)
	var nf *domain.ErrNotFound
	switch {
	case errors.As(err, &nf):
		dash.Accounts = &domain.AccountsResult{Data: []domain.Account{}}
		return dash, nil
	case err != nil:
		return nil, err
	}
	dash.Accounts = accounts

	explicit := bankID != ""
	if !explicit {
		if len(accounts.Data) == 0 {
			return dash, nil
		}
		bankID = accounts.Data[0].BankID
	}

	detail, err := s.details.GetUserAccountDetail(ctx, userID, bankID)
	if err != nil {
		if explicit {
			return nil, err
		}
		s.logger.Warn("dashboard: default account unavailable",
			zap.String("bank_id", bankID),
			zap.Error(err),
		)
		dash.Degraded = true
		return dash, nil
	}

	dash.Selected = &detail.Data
	dash.Transactions = Paginate(detail.Transactions, page, s.details.defaultPageSize)
	dash.Degraded = detail.Degraded
	return dash, nil
}
