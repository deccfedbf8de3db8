package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"EpochVault/internal/epoch"
	"EpochVault/internal/metrics"
	"EpochVault/internal/model"
	"EpochVault/internal/units"
)

// PayoffOracle settles derivative positions expiring at an epoch boundary and returns
// the net amount owed to counterparties.
type PayoffOracle interface {
	SettleMaturedPositions(ctx context.Context, epoch time.Time) (math.Int, error)
}

// payoffRestorer is implemented by oracles that can take back a settled payoff
// when the roll that consumed it is aborted.
type payoffRestorer interface {
	ReservePayoff(expiry time.Time, amount math.Int) error
}

// Valuer reports the current total portfolio value in base units.
type Valuer interface {
	PortfolioValue(ctx context.Context) (math.Int, error)
}

// Custodian moves the base asset in and out of the vault's custody.
type Custodian interface {
	Transfer(from, to model.Account, amount math.Int) error
	BalanceOf(acct model.Account) math.Int
}

// Journal receives every committed roll and account operation.
type Journal interface {
	RecordRoll(r *model.RollReport) error
	RecordAccountEvent(evt *model.AccountEvent) error
}

// Options wires an Engine to its collaborators.
type Options struct {
	Self       model.Account // custody account of the vault
	Admin      model.Account
	Roller     model.Account
	Trader     model.Account
	Frequency  time.Duration
	MaxDeposit math.Int
	Now        func() time.Time

	Oracle    PayoffOracle
	Valuer    Valuer
	Custodian Custodian
	Journal   Journal
	Store     Store
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Engine is the vault's accounting state machine. Every operation runs under one lock and
// either commits all of its effects or none.
type Engine struct {
	mu sync.Mutex

	self        model.Account
	clock       *epoch.Clock
	ledger      model.Ledger
	deposits    map[model.Account]model.DepositReceipt
	withdrawals map[model.Account]model.WithdrawalReceipt
	balances    map[model.Account]math.Int
	nav         map[int64]math.Int
	roles       map[model.Account]map[Role]bool

	oracle    PayoffOracle
	valuer    Valuer
	custodian Custodian
	journal   Journal
	store     Store
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// New creates an engine from a persisted state, or initialises a fresh vault when state is
// nil or has never been saved.
func New(opts Options, state *State) (*Engine, error) {
	if opts.Self == "" {
		return nil, errors.New("vault account is required")
	}
	if opts.Oracle == nil || opts.Valuer == nil || opts.Custodian == nil {
		return nil, errors.New("oracle, valuer and custodian are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		self:      opts.Self,
		oracle:    opts.Oracle,
		valuer:    opts.Valuer,
		custodian: opts.Custodian,
		journal:   opts.Journal,
		store:     opts.Store,
		metrics:   opts.Metrics,
		logger:    logger,
		roles:     make(map[model.Account]map[Role]bool),
	}

	if state.Fresh() {
		if opts.Admin == "" {
			return nil, errors.New("admin account is required for a new vault")
		}
		clock, err := epoch.New(opts.Frequency, opts.Now)
		if err != nil {
			return nil, err
		}
		e.clock = clock
		e.ledger = newLedger(opts.MaxDeposit)
		e.deposits = make(map[model.Account]model.DepositReceipt)
		e.withdrawals = make(map[model.Account]model.WithdrawalReceipt)
		e.balances = make(map[model.Account]math.Int)
		e.nav = make(map[int64]math.Int)
		e.grant(opts.Admin, RoleAdmin)
		if opts.Roller != "" {
			e.grant(opts.Roller, RoleRoller)
		}
		if opts.Trader != "" {
			e.grant(opts.Trader, RoleTrader)
		}
		logger.Info("vault initialised",
			zap.String("vault", string(e.self)),
			zap.Time("first_epoch", clock.State().Current),
			zap.Duration("frequency", opts.Frequency))
		e.persist()
	} else {
		state.normalize()
		clock, err := epoch.Restore(state.Epoch, opts.Now)
		if err != nil {
			return nil, fmt.Errorf("restore epoch: %w", err)
		}
		e.clock = clock
		e.ledger = state.Ledger
		e.deposits = state.Deposits
		e.withdrawals = state.Withdrawals
		e.balances = state.Balances
		e.nav = state.NAV
		for acct, roles := range state.Roles {
			for _, r := range roles {
				e.grant(acct, r)
			}
		}
		logger.Info("vault restored",
			zap.String("vault", string(e.self)),
			zap.Time("epoch", clock.State().Current),
			zap.Bool("dead", e.ledger.Dead))
	}
	e.metrics.ObserveLedger(e.ledger)
	return e, nil
}

// Self returns the vault's custody account.
func (e *Engine) Self() model.Account { return e.self }

// Epoch returns the current epoch record.
func (e *Engine) Epoch() epoch.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.State()
}

// IsEpochActive reports whether user operations are accepted.
func (e *Engine) IsEpochActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.IsEpochActive()
}

// IsEpochFinished reports whether the epoch expired and a roll is due.
func (e *Engine) IsEpochFinished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.IsEpochFinished()
}

// TimeToNextEpoch returns how long the current epoch keeps accepting operations.
func (e *Engine) TimeToNextEpoch() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.TimeToNextEpoch()
}

// Ledger returns a copy of the liquidity counters.
func (e *Engine) Ledger() model.Ledger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger
}

// NAV returns the per-share price recorded for an epoch id.
func (e *Engine) NAV(epochID int64) (math.Int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.priceOf(epochID)
}

// LastNAV returns the price recorded by the most recent live roll.
func (e *Engine) LastNAV() (math.Int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.priceOf(e.clock.State().PreviousID())
}

// Snapshot returns a deep copy of the engine state.
func (e *Engine) Snapshot() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (e *Engine) snapshot() *State {
	s := &State{
		Epoch:       e.clock.State(),
		Ledger:      e.ledger,
		Deposits:    make(map[model.Account]model.DepositReceipt, len(e.deposits)),
		Withdrawals: make(map[model.Account]model.WithdrawalReceipt, len(e.withdrawals)),
		Balances:    make(map[model.Account]math.Int, len(e.balances)),
		NAV:         make(map[int64]math.Int, len(e.nav)),
		Roles:       make(map[model.Account][]Role, len(e.roles)),
	}
	for k, v := range e.deposits {
		s.Deposits[k] = v
	}
	for k, v := range e.withdrawals {
		s.Withdrawals[k] = v
	}
	for k, v := range e.balances {
		s.Balances[k] = v
	}
	for k, v := range e.nav {
		s.NAV[k] = v
	}
	for acct, set := range e.roles {
		for _, r := range allRoles {
			if set[r] {
				s.Roles[acct] = append(s.Roles[acct], r)
			}
		}
	}
	return s
}

// committed runs the post-commit side effects. Failures here are logged and never
// undo the operation.
func (e *Engine) committed(events ...*model.AccountEvent) {
	if e.journal != nil {
		for _, evt := range events {
			if err := e.journal.RecordAccountEvent(evt); err != nil {
				e.logger.Error("journal account event", zap.String("type", string(evt.Type)), zap.Error(err))
			}
		}
	}
	e.persist()
	e.metrics.ObserveLedger(e.ledger)
}

func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	if err := e.store.Save(e.snapshot()); err != nil {
		e.logger.Error("failed to save vault state", zap.Error(err))
	}
}

func (e *Engine) event(t model.AccountEventType, acct model.Account, amount, shares math.Int) *model.AccountEvent {
	return &model.AccountEvent{
		Type:    t,
		Account: acct,
		Epoch:   e.clock.State().ID(),
		Amount:  units.Normalize(amount),
		Shares:  units.Normalize(shares),
		At:      e.clock.Now(),
	}
}

func newRollID() string { return uuid.NewString() }
