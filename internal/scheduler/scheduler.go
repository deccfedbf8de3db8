package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cosmossdk.io/math"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"EpochVault/internal/epoch"
	"EpochVault/internal/model"
	"EpochVault/internal/notifier"
	"EpochVault/internal/recorder"
)

// Vault is the part of the engine the scheduler drives and reports on.
type Vault interface {
	IsEpochFinished() bool
	TimeToNextEpoch() time.Duration
	RollEpoch(ctx context.Context, caller model.Account) (*model.RollReport, error)
	Ledger() model.Ledger
	Epoch() epoch.State
	LastNAV() (math.Int, bool)
}

// Notifier delivers operator messages.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler polls the epoch clock and rolls the vault once an epoch expires.
type Scheduler struct {
	Cron     *cron.Cron
	Vault    Vault
	Caller   model.Account // holds the roller role
	Notifier Notifier      // nil disables notifications
	Recorder recorder.Recorder
	Logger   *zap.Logger
	Ctx      context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, v Vault, caller model.Account, n Notifier, rec recorder.Recorder, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	cronLog := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cronLog))),
		Vault:    v,
		Caller:   caller,
		Notifier: n,
		Recorder: rec,
		Logger:   logger,
		Ctx:      ctx,
	}
}

// RegisterAll registers the roll check.
func (s *Scheduler) RegisterAll(rollCron string) error {
	if _, err := s.Cron.AddFunc(rollCron, s.rollTask); err != nil {
		return fmt.Errorf("register roll task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running roll to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info("scheduler stopped")
}

// RunRollNow runs the roll check immediately (for RUN_ON_START).
func (s *Scheduler) RunRollNow() {
	s.rollTask()
}

func (s *Scheduler) rollTask() {
	if !s.Vault.IsEpochFinished() {
		return
	}
	s.Logger.Info("epoch finished, rolling")
	report, err := s.Vault.RollEpoch(s.Ctx, s.Caller)
	if err != nil {
		s.Logger.Error("roll epoch", zap.Error(err))
		s.trySend(fmt.Sprintf("❌ <b>Roll failed</b>\n\n%v", err))
		return
	}

	msg := notifier.FormatRollReport(report)
	if report.DiedThisRoll {
		msg = notifier.FormatDeathAlert(report) + "\n" + msg
	}
	s.trySend(msg)
}

// HandleCommand processes an operator command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	var verb string
	if f := strings.Fields(command); len(f) > 0 {
		verb = f[0]
	}
	switch verb {
	case "/status":
		nav, ok := s.Vault.LastNAV()
		return notifier.FormatStatus(s.Vault.Ledger(), s.Vault.Epoch(), s.Vault.TimeToNextEpoch(), nav, ok)
	case "/rolls":
		rolls, err := s.Recorder.RecentRolls(10)
		if err != nil {
			s.Logger.Error("load recent rolls", zap.Error(err))
			return "Failed to load roll history."
		}
		return notifier.FormatRollHistory(rolls)
	default:
		return "Commands:\n• /status\n• /rolls"
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.Logger.Error("send notification", zap.Error(err))
	}
}
