package services

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkalewa/skill_exchange/models"
)

// WalletService is the only writer of credit movements. Balances are
// cached on the account row and updated in the same transaction as every
// ledger append, so the ledger can always re-derive them.
type WalletService struct {
	db *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{db: db}
}

// PostEntry appends a single ledger entry in its own transaction.
func (s *WalletService) PostEntry(accountID uuid.UUID, amount int64, reason models.LedgerReason, sessionID *uuid.UUID) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = postEntryTx(tx, accountID, amount, reason, sessionID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Transfer posts the two offsetting legs of a credit movement as one
// atomic unit. Accounts are touched in ID order so two transfers that
// share accounts cannot deadlock.
func (s *WalletService) Transfer(fromID, toID uuid.UUID, amount int64, reason models.LedgerReason, sessionID *uuid.UUID) error {
	if amount <= 0 {
		return fmt.Errorf("%w: transfer amount must be positive", ErrInvalidRequest)
	}
	if fromID == toID {
		return fmt.Errorf("%w: transfer to self", ErrInvalidRequest)
	}

	legs := []struct {
		account uuid.UUID
		amount  int64
	}{
		{fromID, -amount},
		{toID, amount},
	}
	sort.Slice(legs, func(i, j int) bool {
		return legs[i].account.String() < legs[j].account.String()
	})

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, leg := range legs {
			if _, err := postEntryTx(tx, leg.account, leg.amount, reason, sessionID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Balance returns the cached running total for the account.
func (s *WalletService) Balance(accountID uuid.UUID) (int64, error) {
	var account models.Account
	if err := s.db.First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: account %s", ErrNotFound, accountID)
		}
		return 0, fmt.Errorf("load account: %w", err)
	}
	return account.CreditBalance, nil
}

// DeriveBalance re-sums the ledger, bypassing the cached counter.
func (s *WalletService) DeriveBalance(accountID uuid.UUID) (int64, error) {
	var total int64
	err := s.db.Model(&models.LedgerEntry{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return total, nil
}

// Audit checks the cached balance against the ledger-derived one and
// returns both. A mismatch is a bug and is reported as such.
func (s *WalletService) Audit(accountID uuid.UUID) (cached int64, derived int64, err error) {
	cached, err = s.Balance(accountID)
	if err != nil {
		return 0, 0, err
	}
	derived, err = s.DeriveBalance(accountID)
	if err != nil {
		return 0, 0, err
	}
	if cached != derived {
		return cached, derived, fmt.Errorf("%w: account %s cached %d derived %d",
			ErrLedgerInconsistency, accountID, cached, derived)
	}
	return cached, derived, nil
}

// Entries returns the account's ledger history, newest first.
func (s *WalletService) Entries(accountID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.
		Where("account_id = ?", accountID).
		Order("sequence desc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("select ledger entries: %w", err)
	}
	return entries, nil
}

// postEntryTx appends an entry inside the caller's transaction. The
// guarded balance update doubles as the account row lock: it fails when
// the account is missing or the debit would go negative, and it
// serializes concurrent posts against the same account for the rest of
// the transaction.
func postEntryTx(tx *gorm.DB, accountID uuid.UUID, amount int64, reason models.LedgerReason, sessionID *uuid.UUID) (*models.LedgerEntry, error) {
	res := tx.Model(&models.Account{}).
		Where("id = ? AND credit_balance + ? >= 0", accountID, amount).
		Update("credit_balance", gorm.Expr("credit_balance + ?", amount))
	if res.Error != nil {
		return nil, fmt.Errorf("update balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.Account{}).Where("id = ?", accountID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("check account: %w", err)
		}
		if count == 0 {
			return nil, fmt.Errorf("%w: account %s", ErrNotFound, accountID)
		}
		return nil, fmt.Errorf("%w: account %s amount %d", ErrInsufficientFunds, accountID, amount)
	}

	var lastSeq int64
	err := tx.Model(&models.LedgerEntry{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&lastSeq).Error
	if err != nil {
		return nil, fmt.Errorf("read sequence: %w", err)
	}

	entry := &models.LedgerEntry{
		AccountID: accountID,
		Amount:    amount,
		Reason:    reason,
		SessionID: sessionID,
		Sequence:  lastSeq + 1,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	return entry, nil
}
