package tracker

import (
	"indexer/internal/blockchain"
	"indexer/internal/logger"
	"indexer/internal/rewards"
	"indexer/internal/storage"

	"go.uber.org/zap"
)

func (t *Tracker) rewardNotified(tx storage.Storage, now uint64, event *blockchain.RewardNotifiedEvent) (*storage.Event, error) {
	state, err := loadPool(tx, event.PoolAddress.Hex())
	if err != nil {
		return nil, err
	}
	rewardData, err := state.rewardDataFor(event.RewardToken.Hex())
	if err != nil {
		return nil, err
	}

	// every token of the pool, this one included, is brought up to now first
	if err := state.accrue(now); err != nil {
		return nil, err
	}

	amount := amountOf(event.RewardAmount)
	period, err := rewards.NextPeriod(rewardData, amount, now)
	if err != nil {
		return nil, err
	}

	rate, periodFinish := period.RewardRate, period.PeriodFinish
	if event.RewardRate != nil {
		drift, err := rewards.RateDrift(period.RewardRate, event.RewardRate, rewardData.Duration)
		if err != nil {
			return nil, err
		}
		if drift.Gt(t.rateDriftTolerance) {
			logger.Warn("reward notified: supplied rate drifts from the accrued state",
				zap.String("pool", rewardData.PoolAddress),
				zap.String("reward token", rewardData.RewardToken),
				zap.String("computed", period.RewardRate.Dec()),
				zap.String("supplied", event.RewardRate.Dec()),
				zap.String("drift", drift.Dec()),
			)
			t.metrics.ObservePrecisionDrift(storage.RewardNotifiedEventKind)
		}
		rate = event.RewardRate

		if event.PeriodFinish != 0 {
			if event.PeriodFinish < now {
				return nil, invariant("period finish %d before notify at %d", event.PeriodFinish, now)
			}
			periodFinish = event.PeriodFinish
		}
	}

	rewardData.RewardRate.Set(rate)
	rewardData.PeriodFinish = periodFinish
	rewardData.LastUpdateTime = now
	rewardData.UnallocatedRewards.Int().Clear()
	if err := addAmount(&rewardData.RewardBalance, amount, "reward balance"); err != nil {
		return nil, err
	}
	if err := addAmount(&rewardData.TotalDistributed, amount, "total distributed"); err != nil {
		return nil, err
	}

	if err := state.save(tx); err != nil {
		return nil, err
	}

	logger.Info("reward notified",
		zap.String("pool", rewardData.PoolAddress),
		zap.String("reward token", rewardData.RewardToken),
		zap.String("amount", amount.Dec()),
		zap.String("leftover", period.Leftover.Dec()),
		zap.Stringer("rate", rewardData.RewardRate),
		zap.Uint64("period finish", rewardData.PeriodFinish),
	)

	return &storage.Event{
		PoolAddress:  rewardData.PoolAddress,
		StakingToken: state.pool.StakingToken,
		RewardToken:  rewardData.RewardToken,
		Amount:       storage.AmountFrom(amount),
	}, nil
}
