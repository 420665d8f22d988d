package tracker

import (
	"indexer/internal/blockchain"
	"indexer/internal/logger"
	"indexer/internal/storage"

	"go.uber.org/zap"
)

// withdraw settles at the pre-withdrawal weight in every subscribed pool before
// lowering it. A zero amount is a pure checkpoint.
func (t *Tracker) withdraw(tx storage.Storage, now uint64, event *blockchain.WithdrawEvent) (*storage.Event, error) {
	user, stakingToken := event.User.Hex(), event.StakingToken.Hex()
	amount := amountOf(event.Amount)

	balance, err := tx.GetUserStakedBalance(user, stakingToken)
	if err != nil {
		return nil, missingEntity(err)
	}
	if balance.Amount.Int().Lt(amount) {
		return nil, invariant("withdraw %s above staked balance %s of %s", amount.Dec(), balance.Amount, user)
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
		if err := subAmount(&state.pool.TotalSubscribed, amount, "total subscribed of "+state.pool.Address); err != nil {
			return nil, err
		}
		state.pool.WithdrawalCount++
		if err := state.save(tx); err != nil {
			return nil, err
		}
	}

	if err := subAmount(&balance.Amount, amount, "staked balance"); err != nil {
		return nil, err
	}
	if err := tx.UpdateUserStakedBalance(balance); err != nil {
		return nil, err
	}

	logger.Debug("withdraw: done",
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
