package tracker

import (
	"indexer/internal/storage"

	"github.com/pkg/errors"
)

// counters maps each event kind to the Module counter that numbers it.
var counters = map[storage.EventKind]func(module *storage.Module) *uint64{
	storage.StakingPoolCreatedEventKind: func(m *storage.Module) *uint64 { return &m.PoolCount },
	storage.RewardAddedEventKind:        func(m *storage.Module) *uint64 { return &m.RewardAddedCount },
	storage.RewardNotifiedEventKind:     func(m *storage.Module) *uint64 { return &m.NotifyCount },
	storage.StakeEventKind:              func(m *storage.Module) *uint64 { return &m.StakeCount },
	storage.WithdrawEventKind:           func(m *storage.Module) *uint64 { return &m.WithdrawalCount },
	storage.EmergencyWithdrawEventKind:  func(m *storage.Module) *uint64 { return &m.EmergencyWithdrawalCount },
	storage.SubscriptionEventKind:       func(m *storage.Module) *uint64 { return &m.SubscriptionCount },
	storage.UnsubscriptionEventKind:     func(m *storage.Module) *uint64 { return &m.UnsubscriptionCount },
	storage.RewardClaimedEventKind:      func(m *storage.Module) *uint64 { return &m.ClaimCount },
}

// nextSequence increments the counter of kind and returns its new value.
func nextSequence(module *storage.Module, kind storage.EventKind) (uint64, error) {
	counter, ok := counters[kind]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownEvent, "no counter for %q", kind)
	}
	value := counter(module)
	*value++
	return *value, nil
}
