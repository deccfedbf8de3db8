package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/math"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"EpochVault/internal/model"
)

// SQLiteRecorder persists roll reports and account events to a SQLite database.
// Amounts are stored as decimal TEXT in base units so no precision is lost.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the daemon writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rolls (
			id                  TEXT PRIMARY KEY,
			closed_epoch        INTEGER NOT NULL,
			next_epoch          INTEGER NOT NULL,
			portfolio_value     TEXT,
			payoff              TEXT,
			nav                 TEXT,
			minted_shares       TEXT,
			settled_shares      TEXT,
			settled_value       TEXT,
			total_supply        TEXT,
			locked_basis        TEXT,
			pending_withdrawals TEXT,
			pending_payoffs     TEXT,
			dead                INTEGER,
			died_this_roll      INTEGER,
			rolled_at           INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rolls_epoch ON rolls(closed_epoch)`,

		`CREATE TABLE IF NOT EXISTS account_events (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			event_type   TEXT NOT NULL,
			account      TEXT NOT NULL,
			counterparty TEXT,
			epoch        INTEGER,
			amount       TEXT,
			shares       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_account ON account_events(account, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRoll(rep *model.RollReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO rolls
		(id, closed_epoch, next_epoch, portfolio_value, payoff, nav,
		 minted_shares, settled_shares, settled_value, total_supply, locked_basis,
		 pending_withdrawals, pending_payoffs, dead, died_this_roll, rolled_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rep.ID, rep.ClosedEpoch.Unix(), rep.NextEpoch.Unix(),
		text(rep.PortfolioValue), text(rep.Payoff), text(rep.NAV),
		text(rep.MintedShares), text(rep.SettledShares), text(rep.SettledValue),
		text(rep.TotalSupply), text(rep.LockedBasis),
		text(rep.PendingWithdrawals), text(rep.PendingPayoffs),
		rep.Dead, rep.DiedThisRoll, rep.RolledAt.Unix(),
	)
	return err
}

func (r *SQLiteRecorder) RecordAccountEvent(evt *model.AccountEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO account_events
		(timestamp, event_type, account, counterparty, epoch, amount, shares)
		VALUES (?,?,?,?,?,?,?)`,
		evt.At.Unix(), string(evt.Type), string(evt.Account), string(evt.Counterparty),
		evt.Epoch, text(evt.Amount), text(evt.Shares),
	)
	return err
}

// RecentRolls returns up to limit rolls, newest first.
func (r *SQLiteRecorder) RecentRolls(limit int) ([]model.RollReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, closed_epoch, next_epoch, portfolio_value, payoff, nav,
		minted_shares, settled_shares, settled_value, total_supply, locked_basis,
		pending_withdrawals, pending_payoffs, dead, died_this_roll, rolled_at
		FROM rolls ORDER BY closed_epoch DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RollReport
	for rows.Next() {
		var (
			rep                       model.RollReport
			closed, next, rolledAt    int64
			portfolio, payoff, nav    string
			minted, settled, settledV string
			supply, basis, pw, pp     string
		)
		if err := rows.Scan(&rep.ID, &closed, &next, &portfolio, &payoff, &nav,
			&minted, &settled, &settledV, &supply, &basis, &pw, &pp,
			&rep.Dead, &rep.DiedThisRoll, &rolledAt); err != nil {
			return nil, err
		}
		rep.ClosedEpoch = time.Unix(closed, 0).UTC()
		rep.NextEpoch = time.Unix(next, 0).UTC()
		rep.RolledAt = time.Unix(rolledAt, 0).UTC()
		ints := []struct {
			dst *math.Int
			src string
		}{
			{&rep.PortfolioValue, portfolio}, {&rep.Payoff, payoff}, {&rep.NAV, nav},
			{&rep.MintedShares, minted}, {&rep.SettledShares, settled}, {&rep.SettledValue, settledV},
			{&rep.TotalSupply, supply}, {&rep.LockedBasis, basis},
			{&rep.PendingWithdrawals, pw}, {&rep.PendingPayoffs, pp},
		}
		for _, f := range ints {
			if *f.dst, err = parseInt(f.src); err != nil {
				return nil, fmt.Errorf("roll %s: %w", rep.ID, err)
			}
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// AccountHistory returns up to limit events for acct, newest first.
func (r *SQLiteRecorder) AccountHistory(acct model.Account, limit int) ([]model.AccountEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT timestamp, event_type, account, counterparty, epoch, amount, shares
		FROM account_events WHERE account = ? OR counterparty = ?
		ORDER BY id DESC LIMIT ?`, string(acct), string(acct), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AccountEvent
	for rows.Next() {
		var (
			evt                       model.AccountEvent
			ts                        int64
			typ, account, counterpart string
			amount, shares            string
		)
		if err := rows.Scan(&ts, &typ, &account, &counterpart, &evt.Epoch, &amount, &shares); err != nil {
			return nil, err
		}
		evt.At = time.Unix(ts, 0).UTC()
		evt.Type = model.AccountEventType(typ)
		evt.Account = model.Account(account)
		evt.Counterparty = model.Account(counterpart)
		if evt.Amount, err = parseInt(amount); err != nil {
			return nil, err
		}
		if evt.Shares, err = parseInt(shares); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}

func text(x math.Int) string {
	if x.IsNil() {
		return "0"
	}
	return x.String()
}

func parseInt(s string) (math.Int, error) {
	v, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
