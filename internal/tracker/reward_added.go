package tracker

import (
	"indexer/internal/blockchain"
	"indexer/internal/logger"
	"indexer/internal/storage"

	"go.uber.org/zap"
)

func (t *Tracker) rewardAdded(tx storage.Storage, now uint64, event *blockchain.RewardAddedEvent) (*storage.Event, error) {
	pool, err := tx.GetPool(event.PoolAddress.Hex())
	if err != nil {
		return nil, missingEntity(err)
	}

	rewardToken := event.RewardToken.Hex()
	if pool.HasRewardToken(rewardToken) {
		return nil, invariant("reward token %s already added to pool %s", rewardToken, pool.Address)
	}

	pool.RewardTokens = append(pool.RewardTokens, rewardToken)
	if err := tx.UpdatePool(pool); err != nil {
		return nil, err
	}

	rewardData := &storage.RewardData{
		PoolAddress: pool.Address,
		RewardToken: rewardToken,
		Distributor: event.RewardsDistributor.Hex(),
		Duration:    event.RewardsDuration,
	}
	if err := tx.UpdateRewardData(rewardData); err != nil {
		return nil, err
	}

	// users already subscribed start earning the new token from here on
	subscriptions, err := tx.GetActivePoolSubscriptions(pool.Address)
	if err != nil {
		return nil, err
	}
	for _, subscription := range subscriptions {
		if _, _, err := tx.GetOrCreateUserRewardData(subscription.User, rewardData); err != nil {
			return nil, err
		}
	}

	logger.Info("reward token added",
		zap.String("pool", pool.Address),
		zap.String("reward token", rewardToken),
		zap.Uint64("duration", rewardData.Duration),
		zap.Int("subscribers", len(subscriptions)),
		zap.Uint64("timestamp", now),
	)

	return &storage.Event{
		PoolAddress:  pool.Address,
		User:         rewardData.Distributor,
		StakingToken: pool.StakingToken,
		RewardToken:  rewardToken,
	}, nil
}
