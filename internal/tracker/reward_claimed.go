package tracker

import (
	"indexer/internal/blockchain"
	"indexer/internal/logger"
	"indexer/internal/rewards"
	"indexer/internal/storage"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

func (t *Tracker) rewardClaimed(tx storage.Storage, now uint64, event *blockchain.RewardClaimedEvent) (*storage.Event, error) {
	user := event.User.Hex()
	amount := amountOf(event.RewardAmount)

	state, err := loadPool(tx, event.PoolAddress.Hex())
	if err != nil {
		return nil, err
	}
	pool := state.pool
	rewardData, err := state.rewardDataFor(event.RewardToken.Hex())
	if err != nil {
		return nil, err
	}

	userRewardData, err := tx.GetUserRewardData(user, pool.Address, rewardData.RewardToken)
	if err != nil {
		return nil, missingEntity(err)
	}

	weight, err := userWeight(tx, user, pool)
	if err != nil {
		return nil, err
	}

	if err := rewards.Accrue(rewardData, pool.TotalSubscribed.Int(), now); err != nil {
		return nil, err
	}
	if _, err := rewards.Settle(userRewardData, rewardData, weight); err != nil {
		return nil, err
	}

	unclaimed := userRewardData.UnclaimedRewards.Int()
	if amount.Gt(unclaimed) {
		excess := new(uint256.Int).Sub(amount, unclaimed)
		if excess.Gt(t.claimTolerance) {
			return nil, invariant("claim %s exceeds unclaimed %s of %s by %s", amount.Dec(), unclaimed.Dec(), user, excess.Dec())
		}
		logger.Warn("reward claimed: amount exceeds unclaimed within tolerance",
			zap.String("user", user),
			zap.String("pool", pool.Address),
			zap.String("reward token", rewardData.RewardToken),
			zap.String("amount", amount.Dec()),
			zap.String("unclaimed", unclaimed.Dec()),
		)
		t.metrics.ObservePrecisionDrift(storage.RewardClaimedEventKind)
		unclaimed.Clear()
	} else {
		unclaimed.Sub(unclaimed, amount)
	}

	if err := subAmount(&rewardData.RewardBalance, amount, "reward balance of "+pool.Address); err != nil {
		return nil, err
	}
	if err := addAmount(&userRewardData.TotalClaimed, amount, "total claimed"); err != nil {
		return nil, err
	}
	pool.ClaimCount++

	if err := state.save(tx); err != nil {
		return nil, err
	}
	if err := tx.UpdateUserRewardData(userRewardData); err != nil {
		return nil, err
	}

	logger.Debug("reward claimed: done",
		zap.String("user", user),
		zap.String("pool", pool.Address),
		zap.String("reward token", rewardData.RewardToken),
		zap.String("amount", amount.Dec()),
		zap.Stringer("reward balance", rewardData.RewardBalance),
	)

	return &storage.Event{
		PoolAddress:  pool.Address,
		User:         user,
		StakingToken: pool.StakingToken,
		RewardToken:  rewardData.RewardToken,
		Amount:       storage.AmountFrom(amount),
	}, nil
}
