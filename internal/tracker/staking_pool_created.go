package tracker

import (
	"indexer/internal/blockchain"
	"indexer/internal/logger"
	"indexer/internal/storage"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (t *Tracker) stakingPoolCreated(tx storage.Storage, now uint64, event *blockchain.StakingPoolCreatedEvent) (*storage.Event, error) {
	address := event.PoolAddress.Hex()

	_, err := tx.GetPool(address)
	if err == nil {
		return nil, invariant("pool %s already exists", address)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	pool := &storage.StakingPool{
		Address:          address,
		StakingToken:     event.StakingToken.Hex(),
		Creator:          event.Creator.Hex(),
		RewardTokens:     []string{},
		CreatedTimestamp: now,
	}
	if err := tx.UpdatePool(pool); err != nil {
		return nil, err
	}

	logger.Info("staking pool created",
		zap.String("pool", pool.Address),
		zap.String("staking token", pool.StakingToken),
		zap.String("creator", pool.Creator),
	)

	return &storage.Event{
		PoolAddress:  pool.Address,
		User:         pool.Creator,
		StakingToken: pool.StakingToken,
	}, nil
}
