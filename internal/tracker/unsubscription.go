package tracker

import (
	"indexer/internal/blockchain"
	"indexer/internal/logger"
	"indexer/internal/storage"

	"go.uber.org/zap"
)

// unsubscription realizes the user's final earnings and removes the full
// balance from the pool weight. Reward records are kept.
func (t *Tracker) unsubscription(tx storage.Storage, now uint64, event *blockchain.UnsubscriptionEvent) (*storage.Event, error) {
	user := event.User.Hex()

	subscription, err := tx.GetUserSubscription(user, event.PoolAddress.Hex())
	if err != nil {
		return nil, missingEntity(err)
	}
	if !subscription.IsCurrentlySubscribed {
		return nil, invariant("user %s is not subscribed to pool %s", user, subscription.PoolAddress)
	}

	state, err := loadPool(tx, subscription.PoolAddress)
	if err != nil {
		return nil, err
	}
	pool := state.pool

	balance, err := tx.GetUserStakedBalance(user, pool.StakingToken)
	if err != nil {
		return nil, missingEntity(err)
	}

	if err := state.accrue(now); err != nil {
		return nil, err
	}
	if err := state.settle(tx, user, balance.Amount.Int()); err != nil {
		return nil, err
	}

	if err := subAmount(&pool.TotalSubscribed, balance.Amount.Int(), "total subscribed"); err != nil {
		return nil, err
	}
	if pool.SubscriberCount == 0 {
		return nil, invariant("pool %s has no subscribers to remove", pool.Address)
	}
	pool.SubscriberCount--
	if err := state.save(tx); err != nil {
		return nil, err
	}

	subscription.IsCurrentlySubscribed = false
	if err := tx.UpdateUserSubscription(subscription); err != nil {
		return nil, err
	}

	logger.Debug("unsubscription: done",
		zap.String("user", user),
		zap.String("pool", pool.Address),
		zap.Stringer("weight", balance.Amount),
		zap.Stringer("total subscribed", pool.TotalSubscribed),
	)

	return &storage.Event{
		PoolAddress:  pool.Address,
		User:         user,
		StakingToken: pool.StakingToken,
		Amount:       storage.AmountFrom(balance.Amount.Clone()),
	}, nil
}
