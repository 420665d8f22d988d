package tracker

import (
	"indexer/internal/blockchain"
	"indexer/internal/logger"
	"indexer/internal/rewards"
	"indexer/internal/storage"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// subscription adds the user's entire staked balance to the pool weight.
func (t *Tracker) subscription(tx storage.Storage, now uint64, event *blockchain.SubscriptionEvent) (*storage.Event, error) {
	user := event.User.Hex()

	state, err := loadPool(tx, event.PoolAddress.Hex())
	if err != nil {
		return nil, err
	}
	pool := state.pool
	if pool.StakingToken != event.StakingToken.Hex() {
		return nil, invariant("pool %s stakes %s, not %s", pool.Address, pool.StakingToken, event.StakingToken.Hex())
	}

	balance, err := tx.GetUserStakedBalance(user, pool.StakingToken)
	if err != nil {
		return nil, missingEntity(err)
	}

	subscription, err := tx.GetUserSubscription(user, pool.Address)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		subscription = &storage.UserSubscription{User: user, PoolAddress: pool.Address, StakingToken: pool.StakingToken}
	case err != nil:
		return nil, err
	case subscription.IsCurrentlySubscribed:
		return nil, invariant("user %s already subscribed to pool %s", user, pool.Address)
	}

	if err := state.accrue(now); err != nil {
		return nil, err
	}

	for _, rd := range state.rewardData {
		userRewardData, created, err := tx.GetOrCreateUserRewardData(user, rd)
		if err != nil {
			return nil, err
		}
		if created {
			continue
		}
		// a retained record held no weight since unsubscribing
		if _, err := rewards.Settle(userRewardData, rd, new(uint256.Int)); err != nil {
			return nil, err
		}
		if err := tx.UpdateUserRewardData(userRewardData); err != nil {
			return nil, err
		}
	}

	if err := addAmount(&pool.TotalSubscribed, balance.Amount.Int(), "total subscribed"); err != nil {
		return nil, err
	}
	pool.SubscriberCount++
	if err := state.save(tx); err != nil {
		return nil, err
	}

	subscription.IsCurrentlySubscribed = true
	if err := tx.UpdateUserSubscription(subscription); err != nil {
		return nil, err
	}

	logger.Debug("subscription: done",
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
