package tracker

import (
	"indexer/internal/fixedpoint"
	"indexer/internal/rewards"
	"indexer/internal/storage"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// poolState is a pool with every one of its reward token records, loaded
// together so that accrual always covers all of them.
type poolState struct {
	pool       *storage.StakingPool
	rewardData []*storage.RewardData
}

func loadPool(tx storage.Storage, address string) (*poolState, error) {
	pool, err := tx.GetPool(address)
	if err != nil {
		return nil, missingEntity(err)
	}

	rewardData, err := tx.GetRewardDataByPool(address)
	if err != nil {
		return nil, err
	}

	return &poolState{pool: pool, rewardData: rewardData}, nil
}

func (p *poolState) rewardDataFor(rewardToken string) (*storage.RewardData, error) {
	for _, rd := range p.rewardData {
		if rd.RewardToken == rewardToken {
			return rd, nil
		}
	}
	return nil, errors.Wrapf(ErrMissingEntity, "reward data %s/%s", p.pool.Address, rewardToken)
}

// accrue brings every reward token of the pool up to now at the current weight.
func (p *poolState) accrue(now uint64) error {
	return rewards.AccrueAll(p.rewardData, p.pool.TotalSubscribed.Int(), now)
}

// settle realizes the user's earnings in every reward token of the pool.
// weight must be the user's weight before any pending change.
func (p *poolState) settle(tx storage.Storage, user string, weight *uint256.Int) error {
	for _, rd := range p.rewardData {
		userRewardData, err := tx.GetUserRewardData(user, rd.PoolAddress, rd.RewardToken)
		if err != nil {
			return missingEntity(err)
		}
		if _, err := rewards.Settle(userRewardData, rd, weight); err != nil {
			return err
		}
		if err := tx.UpdateUserRewardData(userRewardData); err != nil {
			return err
		}
	}
	return nil
}

func (p *poolState) save(tx storage.Storage) error {
	if err := tx.UpdatePool(p.pool); err != nil {
		return err
	}
	for _, rd := range p.rewardData {
		if err := tx.UpdateRewardData(rd); err != nil {
			return err
		}
	}
	return nil
}

// userWeight is the weight the user currently holds in pool: the full staked
// balance while subscribed, zero otherwise.
func userWeight(tx storage.Storage, user string, pool *storage.StakingPool) (*uint256.Int, error) {
	subscription, err := tx.GetUserSubscription(user, pool.Address)
	if errors.Is(err, storage.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	if !subscription.IsCurrentlySubscribed {
		return new(uint256.Int), nil
	}

	balance, err := tx.GetUserStakedBalance(user, pool.StakingToken)
	if err != nil {
		return nil, missingEntity(err)
	}
	return balance.Amount.Clone(), nil
}

func addAmount(target *storage.Amount, value *uint256.Int, what string) error {
	if _, overflow := target.Int().AddOverflow(target.Int(), value); overflow {
		return errors.Wrap(fixedpoint.ErrOverflow, what)
	}
	return nil
}

func subAmount(target *storage.Amount, value *uint256.Int, what string) error {
	if target.Int().Lt(value) {
		return invariant("%s: %s is below %s", what, target, value.Dec())
	}
	target.Int().Sub(target.Int(), value)
	return nil
}

// amountOf treats an absent amount as zero.
func amountOf(value *uint256.Int) *uint256.Int {
	if value == nil {
		return new(uint256.Int)
	}
	return value
}
