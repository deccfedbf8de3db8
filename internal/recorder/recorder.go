package recorder

import "EpochVault/internal/model"

// Recorder persists the vault's roll and account history for analysis. It satisfies
// vault.Journal.
type Recorder interface {
	RecordRoll(r *model.RollReport) error
	RecordAccountEvent(evt *model.AccountEvent) error
	RecentRolls(limit int) ([]model.RollReport, error)
	AccountHistory(acct model.Account, limit int) ([]model.AccountEvent, error)
	Close() error
}
