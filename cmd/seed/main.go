// Command seed inserts a user with one linked bank, and optionally a transfer
// to a second bank, into the postgres backend for local runs.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"time"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/config"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/observability"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/postgres"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	email        = flag.String("email", "sandbox@example.com", "user email")
	firstName    = flag.String("first-name", "Sandbox", "user first name")
	lastName     = flag.String("last-name", "User", "user last name")
	accessToken  = flag.String("access-token", "", "provider access token of the linked bank (required)")
	accountID    = flag.String("account-id", "", "provider account id of the linked bank")
	itemID       = flag.String("item-id", "", "provider item id of the linked bank")
	peerToken    = flag.String("peer-access-token", "", "access token of a second bank that receives a transfer")
	transferAmt  = flag.String("transfer-amount", "25.00", "amount of the seeded transfer")
	transferName = flag.String("transfer-name", "Seed transfer", "name of the seeded transfer")
)

func main() {
	flag.Parse()
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel, "banking-aggregator-seed")
	defer logger.Sync()

	if *accessToken == "" {
		logger.Fatal("-access-token is required")
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	amount, err := decimal.NewFromString(*transferAmt)
	if err != nil {
		logger.Fatal("invalid -transfer-amount", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}
	store := postgres.NewStore(pool)

	user := domain.User{ID: uuid.NewString(), Email: *email, FirstName: *firstName, LastName: *lastName}
	if err := store.CreateUser(ctx, user); err != nil {
		logger.Fatal("failed to create user", zap.Error(err))
	}

	bank := newBank(user.ID, *accessToken, *accountID, *itemID)
	if err := store.CreateBank(ctx, bank); err != nil {
		logger.Fatal("failed to create bank", zap.Error(err))
	}
	logger.Info("seeded user and bank",
		zap.String("user_id", user.ID),
		zap.String("bank_id", bank.ID),
		zap.String("shareable_id", bank.ShareableID),
	)

	if *peerToken == "" {
		return
	}
	peer := newBank(user.ID, *peerToken, "", "")
	if err := store.CreateBank(ctx, peer); err != nil {
		logger.Fatal("failed to create peer bank", zap.Error(err))
	}
	transfer := domain.Transfer{
		ID:             uuid.NewString(),
		Name:           *transferName,
		Amount:         amount,
		Channel:        "online",
		Category:       "Transfer",
		SenderBankID:   bank.ID,
		ReceiverBankID: peer.ID,
		Email:          user.Email,
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.CreateTransfer(ctx, transfer); err != nil {
		logger.Fatal("failed to create transfer", zap.Error(err))
	}
	logger.Info("seeded transfer",
		zap.String("transfer_id", transfer.ID),
		zap.String("receiver_bank_id", peer.ID),
		zap.String("amount", amount.String()),
	)
}

// newBank builds a bank row. The shareable id is the base64 of the account
// id, falling back to the bank id when no account id is known.
func newBank(userID, token, accountID, itemID string) domain.Bank {
	id := uuid.NewString()
	share := accountID
	if share == "" {
		share = id
	}
	return domain.Bank{
		ID:          id,
		UserID:      userID,
		AccessToken: token,
		ItemID:      itemID,
		AccountID:   accountID,
		ShareableID: base64.StdEncoding.EncodeToString([]byte(share)),
	}
}
