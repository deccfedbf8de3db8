package recorder

import "EpochVault/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRoll(_ *model.RollReport) error           { return nil }
func (n *NoopRecorder) RecordAccountEvent(_ *model.AccountEvent) error { return nil }
func (n *NoopRecorder) RecentRolls(_ int) ([]model.RollReport, error)  { return nil, nil }
func (n *NoopRecorder) AccountHistory(_ model.Account, _ int) ([]model.AccountEvent, error) {
	return nil, nil
}
func (n *NoopRecorder) Close() error { return nil }
