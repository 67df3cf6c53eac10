package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidhaus/auction-backend/internal/infrastructure/config"
)

// Repositories bundles every PostgreSQL repository over one pool
type Repositories struct {
	Items        *ItemRepository
	Ledger       *LedgerRepository
	Bans         *BanRepository
	Transactions *TransactionRepository
	Accounts     *AccountRepository
	Settings     *SettingsRepository
}

// NewRepositories wires all repositories to the connection pool
func NewRepositories(pool *pgxpool.Pool, auctionCfg config.AuctionConfig) *Repositories {
	return &Repositories{
		Items:        NewItemRepository(pool),
		Ledger:       NewLedgerRepository(pool),
		Bans:         NewBanRepository(pool),
		Transactions: NewTransactionRepository(pool),
		Accounts:     NewAccountRepository(pool),
		Settings:     NewSettingsRepository(pool, auctionCfg),
	}
}
