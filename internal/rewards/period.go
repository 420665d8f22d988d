package rewards

import (
	"indexer/internal/fixedpoint"
	"indexer/internal/storage"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

var ErrZeroDuration = errors.New("rewards: reward duration is zero")

// Period is a reward schedule computed for a notify.
type Period struct {
	Leftover     *uint256.Int
	Total        *uint256.Int
	RewardRate   *uint256.Int
	PeriodFinish uint64
}

// NextPeriod computes the schedule that starts at now when amount is notified.
// It folds the not yet streamed remainder of the running period and the
// unallocated rewards into the new rate. rewardData must already be accrued
// up to now.
func NextPeriod(rewardData *storage.RewardData, amount *uint256.Int, now uint64) (*Period, error) {
	if rewardData.Duration == 0 {
		return nil, ErrZeroDuration
	}

	leftover := new(uint256.Int)
	if now < rewardData.PeriodFinish {
		remaining := uint256.NewInt(rewardData.PeriodFinish - now)
		var err error
		leftover, err = fixedpoint.ScaleMulDiv(rewardData.RewardRate.Int(), remaining, fixedpoint.Precision)
		if err != nil {
			return nil, errors.Wrap(err, "leftover rewards")
		}
	}

	total := new(uint256.Int).Add(leftover, rewardData.UnallocatedRewards.Int())
	if _, overflow := total.AddOverflow(total, amount); overflow {
		return nil, errors.Wrap(fixedpoint.ErrOverflow, "period total")
	}

	rate, err := fixedpoint.ScaleMulDiv(total, fixedpoint.Precision, uint256.NewInt(rewardData.Duration))
	if err != nil {
		return nil, errors.Wrap(err, "reward rate")
	}

	return &Period{
		Leftover:     leftover,
		Total:        total,
		RewardRate:   rate,
		PeriodFinish: now + rewardData.Duration,
	}, nil
}

// RateDrift expresses the difference between two reward rates as the reward
// amount it amounts to over duration, in reward token units.
func RateDrift(computed, supplied *uint256.Int, duration uint64) (*uint256.Int, error) {
	diff := fixedpoint.AbsDiff(computed, supplied)
	return fixedpoint.ScaleMulDiv(diff, uint256.NewInt(duration), fixedpoint.Precision)
}
