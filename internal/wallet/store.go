package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/checkout-gateway/internal/lock"
)

// EntryType distinguishes ledger movements.
type EntryType string

const (
	Debit  EntryType = "debit"
	Credit EntryType = "credit"
)

// Entry is one movement in the append-only wallet ledger.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EntryType `json:"type"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
}

const (
	balanceKeyPrefix = "checkout:wallet:balance:"
	ledgerKeyPrefix  = "checkout:wallet:ledger:"
	lockKeyPrefix    = "checkout:wallet:lock:"
)

// Store keeps the locally cached wallet balance and its ledger. The cached
// value is authoritative only while the backend-of-record is unreachable; a
// balance reported by the backend replaces it wholesale.
type Store struct {
	R    *redis.Client
	Lock lock.Locker
	Now  func() time.Time
}

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Balance returns the cached balance for the shopper, zero when absent.
func (s Store) Balance(ctx context.Context, shopperID string) (int64, error) {
	if s.R == nil {
		return 0, errors.New("wallet store not configured")
	}
	raw, err := s.R.Get(ctx, balanceKeyPrefix+shopperID).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || balance < 0 {
		return 0, err
	}
	return balance, nil
}

// Replace overwrites the cached balance with an authoritative value from the
// backend-of-record. No ledger entry is written: the backend owns the
// history for remotely settled orders.
func (s Store) Replace(ctx context.Context, shopperID string, balance int64) error {
	if s.R == nil {
		return errors.New("wallet store not configured")
	}
	if balance < 0 {
		balance = 0
	}
	return s.R.Set(ctx, balanceKeyPrefix+shopperID, strconv.FormatInt(balance, 10), 0).Err()
}

// Settle applies a debit and a credit to the cached balance as one combined
// update, appending a ledger entry per non-zero movement. The whole
// read-modify-write runs under a per-shopper lock so a concurrent Balance
// read never observes the debit without the credit.
func (s Store) Settle(ctx context.Context, shopperID string, debit, credit int64, debitReason, creditReason string) (int64, error) {
	if s.R == nil {
		return 0, errors.New("wallet store not configured")
	}
	if debit < 0 || credit < 0 {
		return 0, errors.New("wallet: movements must be non-negative")
	}

	var settled int64
	err := s.Lock.WithLock(ctx, lockKeyPrefix+shopperID, 10*time.Second, func(ctx context.Context) error {
		balance, err := s.Balance(ctx, shopperID)
		if err != nil {
			return err
		}
		if debit > balance {
			return errors.New("wallet: debit exceeds balance")
		}
		next := balance - debit + credit

		now := s.now()
		entries := make([]any, 0, 2)
		if debit > 0 {
			entries = append(entries, marshalEntry(Entry{Timestamp: now, Type: Debit, Amount: debit, Reason: debitReason}))
		}
		if credit > 0 {
			entries = append(entries, marshalEntry(Entry{Timestamp: now, Type: Credit, Amount: credit, Reason: creditReason}))
		}

		pipe := s.R.TxPipeline()
		pipe.Set(ctx, balanceKeyPrefix+shopperID, strconv.FormatInt(next, 10), 0)
		if len(entries) > 0 {
			pipe.RPush(ctx, ledgerKeyPrefix+shopperID, entries...)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		settled = next
		return nil
	})
	return settled, err
}

// Ledger returns the full ordered ledger for the shopper.
func (s Store) Ledger(ctx context.Context, shopperID string) ([]Entry, error) {
	if s.R == nil {
		return nil, errors.New("wallet store not configured")
	}
	raw, err := s.R.LRange(ctx, ledgerKeyPrefix+shopperID, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func marshalEntry(e Entry) string {
	data, _ := json.Marshal(e)
	return string(data)
}
