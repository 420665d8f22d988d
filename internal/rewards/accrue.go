// Package rewards holds the reward-per-token accumulator and user settlement.
//
// Every function here is a pure computation over the records it is handed.
// Time is always the timestamp of the event being applied and never a clock
// read, so replaying the same feed reproduces the same state.
package rewards

import (
	"indexer/internal/fixedpoint"
	"indexer/internal/storage"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Accrue brings the accumulator of rewardData up to date as of now, given the
// pool's current subscribed weight.
//
// Time past PeriodFinish does not accrue and LastUpdateTime never moves past
// PeriodFinish, so repeated calls after the period ends are no-ops until the
// next notify restarts the clock. Calling Accrue twice with the same now is a
// no-op the second time.
func Accrue(rewardData *storage.RewardData, totalSubscribed *uint256.Int, now uint64) error {
	effectiveTime := min(now, rewardData.PeriodFinish)
	if effectiveTime <= rewardData.LastUpdateTime {
		return nil
	}

	elapsed := uint256.NewInt(effectiveTime - rewardData.LastUpdateTime)
	rate := rewardData.RewardRate.Int()

	if totalSubscribed.IsZero() {
		deferred, err := fixedpoint.ScaleMulDiv(rate, elapsed, fixedpoint.Precision)
		if err != nil {
			return errors.Wrap(err, "accrue unallocated rewards")
		}
		unallocated := rewardData.UnallocatedRewards.Int()
		unallocated.Add(unallocated, deferred)
	} else {
		increment, err := fixedpoint.ScaleMulDiv(rate, elapsed, totalSubscribed)
		if err != nil {
			return errors.Wrap(err, "accrue reward per token")
		}
		stored := rewardData.RewardPerTokenStored.Int()
		stored.Add(stored, increment)
	}

	rewardData.LastUpdateTime = effectiveTime
	return nil
}

// AccrueAll runs Accrue for every reward token of one pool.
func AccrueAll(rewardData []*storage.RewardData, totalSubscribed *uint256.Int, now uint64) error {
	for _, rd := range rewardData {
		if err := Accrue(rd, totalSubscribed, now); err != nil {
			return errors.Wrapf(err, "reward token %s", rd.RewardToken)
		}
	}
	return nil
}
