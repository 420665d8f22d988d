package rewards

import (
	"indexer/internal/fixedpoint"
	"indexer/internal/storage"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// ErrCheckpointAhead means a user's paid checkpoint is above the pool accumulator.
var ErrCheckpointAhead = errors.New("rewards: user checkpoint ahead of accumulator")

// Settle realizes what userWeight earned since the user's last checkpoint into
// UnclaimedRewards and moves the checkpoint to the current accumulator.
// userWeight must be the weight held before any pending change. It returns the
// amount realized.
func Settle(userRewardData *storage.UserRewardData, rewardData *storage.RewardData, userWeight *uint256.Int) (*uint256.Int, error) {
	stored := rewardData.RewardPerTokenStored.Int()
	paid := userRewardData.RewardPerTokenPaid.Int()

	delta, underflow := new(uint256.Int).SubOverflow(stored, paid)
	if underflow {
		return nil, errors.Wrapf(ErrCheckpointAhead, "user %s paid %s stored %s",
			userRewardData.User, paid.Dec(), stored.Dec())
	}

	earned, err := fixedpoint.ScaleMulDiv(delta, userWeight, fixedpoint.Precision)
	if err != nil {
		return nil, errors.Wrap(err, "settle")
	}

	unclaimed := userRewardData.UnclaimedRewards.Int()
	unclaimed.Add(unclaimed, earned)
	paid.Set(stored)

	return earned, nil
}

// Earned is the amount Settle would realize now, without mutating anything.
func Earned(userRewardData *storage.UserRewardData, rewardData *storage.RewardData, userWeight *uint256.Int) (*uint256.Int, error) {
	// amounts are arrays, the copy is detached
	pending := *userRewardData

	if _, err := Settle(&pending, rewardData, userWeight); err != nil {
		return nil, err
	}
	return pending.UnclaimedRewards.Clone(), nil
}
