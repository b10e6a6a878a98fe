package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/observability"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Transaction page sizing.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// AccountDetailService builds one bank's account detail with its merged
// transaction feed.
type AccountDetailService struct {
	banks           port.ConnectionStore
	transfers       port.TransferStore
	accounts        AccountSource
	institutions    *InstitutionResolver
	defaultPageSize int
	metrics         *observability.Metrics
	logger          *zap.Logger
}

// NewAccountDetailService creates the transaction merger. defaultPageSize
// applies when ListTransactions is called without a page size.
func NewAccountDetailService(
	banks port.ConnectionStore,
	transfers port.TransferStore,
	accounts AccountSource,
	institutions *InstitutionResolver,
	defaultPageSize int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AccountDetailService {
	if defaultPageSize < 1 || defaultPageSize > MaxPageSize {
		defaultPageSize = DefaultPageSize
	}
	return &AccountDetailService{
		banks:           banks,
		transfers:       transfers,
		accounts:        accounts,
		institutions:    institutions,
		defaultPageSize: defaultPageSize,
		metrics:         metrics,
		logger:          logger,
	}
}

// GetAccountDetail returns the bank's account with provider transactions and
// local transfers merged newest first.
func (s *AccountDetailService) GetAccountDetail(ctx context.Context, bankID string) (*domain.AccountDetail, error) {
	bank, err := s.loadBank(ctx, bankID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, bank)
}

// GetUserAccountDetail is GetAccountDetail restricted to banks owned by
// userID. A bank linked by another user is reported as not found.
func (s *AccountDetailService) GetUserAccountDetail(ctx context.Context, userID, bankID string) (*domain.AccountDetail, error) {
	bank, err := s.loadOwnedBank(ctx, userID, bankID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, bank)
}

// ListTransactions returns one page of the bank's merged feed.
func (s *AccountDetailService) ListTransactions(ctx context.Context, bankID string, page, pageSize int) (*domain.TransactionPage, error) {
	detail, err := s.GetAccountDetail(ctx, bankID)
	if err != nil {
		return nil, err
	}
	return Paginate(detail.Transactions, page, s.pageSize(pageSize)), nil
}

// ListUserTransactions is ListTransactions restricted to banks owned by userID.
func (s *AccountDetailService) ListUserTransactions(ctx context.Context, userID, bankID string, page, pageSize int) (*domain.TransactionPage, error) {
	detail, err := s.GetUserAccountDetail(ctx, userID, bankID)
	if err != nil {
		return nil, err
	}
	return Paginate(detail.Transactions, page, s.pageSize(pageSize)), nil
}

func (s *AccountDetailService) pageSize(n int) int {
	if n < 1 {
		return s.defaultPageSize
	}
	return n
}

func (s *AccountDetailService) loadBank(ctx context.Context, bankID string) (*domain.Bank, error) {
	bank, err := s.banks.GetBank(ctx, bankID)
	if err != nil {
		s.metrics.IncrUpstreamError("store/banks")
		return nil, fmt.Errorf("get bank: %w", err)
	}
	if bank == nil {
		return nil, &domain.ErrNotFound{Resource: "bank", ID: bankID}
	}
	return bank, nil
}

func (s *AccountDetailService) loadOwnedBank(ctx context.Context, userID, bankID string) (*domain.Bank, error) {
	bank, err := s.loadBank(ctx, bankID)
	if err != nil {
		return nil, err
	}
	if bank.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "bank", ID: bankID}
	}
	return bank, nil
}

func (s *AccountDetailService) detail(ctx context.Context, bank *domain.Bank) (*domain.AccountDetail, error) {
	ctx, span := tracer.Start(ctx, "AccountDetailService.GetAccountDetail")
	defer span.End()
	span.SetAttributes(attribute.String("bank.id", bank.ID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("account_detail", time.Since(start))
	}()

	acc, err := s.accounts.GetAccount(ctx, *bank)
	if err != nil {
		var nf *domain.ErrNotFound
		if !errors.As(err, &nf) {
			s.logger.Warn("account unresolvable",
				zap.String("bank_id", bank.ID),
				zap.Error(err),
			)
		}
		return nil, &domain.ErrNotFound{Resource: "account", ID: bank.ID}
	}

	var (
		transfers []domain.Transfer
		external  []domain.ExternalTransaction
		inst      *domain.Institution
		instErr   error
	)

	// None of these return an error: each failure degrades its own part.
	var g errgroup.Group
	g.Go(func() error {
		t, err := s.transfers.ListTransfersByBank(ctx, bank.ID)
		if err != nil {
			s.logger.Warn("transfer lookup failed, continuing without transfers",
				zap.String("bank_id", bank.ID),
				zap.Error(err),
			)
			s.metrics.IncrUpstreamError("store/transfers")
			return nil
		}
		transfers = t
		return nil
	})
	g.Go(func() error {
		external = s.accounts.SyncTransactions(ctx, bank.AccessToken)
		return nil
	})
	g.Go(func() error {
		inst, instErr = s.institutions.Resolve(ctx, acc.InstitutionID)
		return nil
	})
	_ = g.Wait()

	detail := &domain.AccountDetail{
		Data:         *acc,
		Transactions: MergeTransactions(external, transfers, bank.ID),
	}
	if instErr != nil {
		s.metrics.IncrDegradedAccount()
		detail.Degraded = true
	} else {
		detail.Data.Institution = inst
	}

	span.SetAttributes(
		attribute.Int("transactions.provider", len(external)),
		attribute.Int("transactions.transfers", len(transfers)),
		attribute.Bool("degraded", detail.Degraded),
	)
	return detail, nil
}

// MergeTransactions concatenates provider records and transfers (in that
// order) and sorts them by calendar day, newest first. The sort is stable, so
// same-day entries keep their concatenation order.
func MergeTransactions(external []domain.ExternalTransaction, transfers []domain.Transfer, bankID string) []domain.Transaction {
	merged := make([]domain.Transaction, 0, len(external)+len(transfers))
	for _, et := range external {
		merged = append(merged, domain.Transaction{
			ID:             et.ID,
			Name:           et.Name,
			Amount:         et.Amount,
			Date:           et.Date.Time,
			PaymentChannel: et.PaymentChannel,
			Category:       et.Category,
			Source:         domain.SourceProvider,
			AccountID:      et.AccountID,
			Pending:        et.Pending,
			Image:          et.Image,
		})
	}
	for _, tr := range transfers {
		direction := domain.DirectionCredit
		if tr.SenderBankID == bankID {
			direction = domain.DirectionDebit
		}
		merged = append(merged, domain.Transaction{
			ID:             tr.ID,
			Name:           tr.Name,
			Amount:         tr.Amount,
			Date:           tr.CreatedAt,
			PaymentChannel: tr.Channel,
			Category:       tr.Category,
			Source:         domain.SourceTransfer,
			Direction:      direction,
		})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return calendarDay(merged[i].Date).After(calendarDay(merged[j].Date))
	})
	return merged
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Paginate returns a 1-based window of txs. page < 1 is treated as 1 and
// pageSize is clamped to [1, MaxPageSize].
func Paginate(txs []domain.Transaction, page, pageSize int) *domain.TransactionPage {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	total := len(txs)
	out := &domain.TransactionPage{
		Data:       []domain.Transaction{},
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}

	// Compare pages before multiplying so a huge page cannot overflow.
	if page > out.TotalPages {
		return out
	}
	from := (page - 1) * pageSize
	to := min(from+pageSize, total)
	out.Data = txs[from:to]
	return out
}
