package tracker

import (
	"indexer/internal/blockchain"
	"indexer/internal/logger"
	"indexer/internal/storage"

	"go.uber.org/zap"
)

// emergencyWithdraw drops the user's whole balance from every subscribed pool
// without settling, so earnings since the last settlement are forfeited.
// Subscription flags are left as they are.
func (t *Tracker) emergencyWithdraw(tx storage.Storage, now uint64, event *blockchain.EmergencyWithdrawEvent) (*storage.Event, error) {
	user, stakingToken := event.User.Hex(), event.StakingToken.Hex()

	balance, err := tx.GetUserStakedBalance(user, stakingToken)
	if err != nil {
		return nil, missingEntity(err)
	}
	staked := balance.Amount.Clone()

	if event.Amount != nil && !event.Amount.Eq(staked) {
		logger.Warn("emergency withdraw: amount differs from staked balance",
			zap.String("user", user),
			zap.String("staking token", stakingToken),
			zap.String("amount", event.Amount.Dec()),
			zap.String("staked", staked.Dec()),
		)
		t.metrics.ObservePrecisionDrift(storage.EmergencyWithdrawEventKind)
	}

	subscriptions, err := tx.GetActiveUserSubscriptions(user, stakingToken)
	if err != nil {
		return nil, err
	}

	for _, subscription := range subscriptions {
		state, err := loadPool(tx, subscription.PoolAddress)
		if err != nil {
			return nil, err
		}
		if err := state.accrue(now); err != nil {
			return nil, err
		}
		if err := subAmount(&state.pool.TotalSubscribed, staked, "total subscribed of "+state.pool.Address); err != nil {
			return nil, err
		}
		if err := state.save(tx); err != nil {
			return nil, err
		}
	}

	balance.Amount.Int().Clear()
	if err := tx.UpdateUserStakedBalance(balance); err != nil {
		return nil, err
	}

	logger.Info("emergency withdraw",
		zap.String("user", user),
		zap.String("staking token", stakingToken),
		zap.String("amount", staked.Dec()),
		zap.Int("pools", len(subscriptions)),
	)

	return &storage.Event{
		User:         user,
		StakingToken: stakingToken,
		Amount:       storage.AmountFrom(staked),
	}, nil
}
