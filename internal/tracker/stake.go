package tracker

import (
	"indexer/internal/blockchain"
	"indexer/internal/logger"
	"indexer/internal/storage"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (t *Tracker) stake(tx storage.Storage, now uint64, event *blockchain.StakeEvent) (*storage.Event, error) {
	user, stakingToken := event.User.Hex(), event.StakingToken.Hex()
	amount := amountOf(event.Amount)

	balance, err := tx.GetUserStakedBalance(user, stakingToken)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Debug("stake: first stake, creating balance...", zap.String("user", user), zap.String("staking token", stakingToken))
		balance = &storage.UserStakedBalance{User: user, StakingToken: stakingToken}
	} else if err != nil {
		return nil, err
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
		if err := state.settle(tx, user, balance.Amount.Int()); err != nil {
			return nil, err
		}
		if err := addAmount(&state.pool.TotalSubscribed, amount, "total subscribed"); err != nil {
			return nil, err
		}
		if err := state.save(tx); err != nil {
			return nil, err
		}
	}

	if err := addAmount(&balance.Amount, amount, "staked balance"); err != nil {
		return nil, err
	}
	if err := tx.UpdateUserStakedBalance(balance); err != nil {
		return nil, err
	}

	logger.Debug("stake: done",
		zap.String("user", user),
		zap.String("amount", amount.Dec()),
		zap.Stringer("balance", balance.Amount),
		zap.Int("pools", len(subscriptions)),
	)

	return &storage.Event{
		User:         user,
		StakingToken: stakingToken,
		Amount:       storage.AmountFrom(amount),
	}, nil
}
