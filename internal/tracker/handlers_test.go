package tracker

import (
	"testing"

	"indexer/internal/blockchain"
	"indexer/internal/rewards"
	"indexer/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHalfPeriodClaim(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.stake(start, alice, 100_000)
	h.subscribe(start, alice)
	h.notify(start, 1_000_000)

	rd := h.rewardData()
	assert.Equal(t, "11574074074074", rd.RewardRate.String())
	assert.Equal(t, start+duration, rd.PeriodFinish)

	// the accrued share truncates to 499,999; the claim is within the one unit tolerance
	require.NoError(t, h.claim(start+duration/2, alice, 500_000))

	rd = h.rewardData()
	assert.Equal(t, "4999999999999", rd.RewardPerTokenStored.String())
	assert.Equal(t, "500000", rd.RewardBalance.String())

	urd := h.userRewardData(alice)
	assert.True(t, urd.UnclaimedRewards.Int().IsZero())
	assert.Equal(t, "500000", urd.TotalClaimed.String())
	assert.Equal(t, rd.RewardPerTokenStored.String(), urd.RewardPerTokenPaid.String())

	assert.Equal(t, uint64(1), h.pool().ClaimCount)
	assert.Equal(t, uint64(1), h.module().ClaimCount)
}

func TestClaimBeyondToleranceIsRejected(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.stake(start, alice, 100_000)
	h.subscribe(start, alice)
	h.notify(start, 1_000_000)
	applied := h.module().AppliedCount

	err := h.claim(start+duration/2, alice, 500_001)
	assert.ErrorIs(t, err, ErrInvariant)

	// nothing of the rejected event is kept
	assert.Equal(t, "1000000", h.rewardData().RewardBalance.String())
	assert.True(t, h.userRewardData(alice).UnclaimedRewards.Int().IsZero())
	assert.Equal(t, start, h.rewardData().LastUpdateTime)
	assert.Equal(t, applied, h.module().AppliedCount)

	h = newHarness(t, WithClaimTolerance(uint256.NewInt(2)))
	h.createPool(start, duration)
	h.stake(start, alice, 100_000)
	h.subscribe(start, alice)
	h.notify(start, 1_000_000)
	require.NoError(t, h.claim(start+duration/2, alice, 500_001))
	assert.Equal(t, "499999", h.rewardData().RewardBalance.String())
}

func TestClaimAtPeriodFinishExhaustsRewards(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.stake(start, alice, 100_000)
	h.subscribe(start, alice)
	h.notify(start, 1_000_000)

	require.NoError(t, h.claim(start+duration, alice, 1_000_000))
	assert.True(t, h.rewardData().RewardBalance.Int().IsZero())

	// nothing accrues past the period finish
	h.unsubscribe(start+duration+5_000, alice)
	assert.True(t, h.userRewardData(alice).UnclaimedRewards.Int().IsZero())
	assert.Equal(t, start+duration, h.rewardData().LastUpdateTime)
}

func TestClaimExhaustion(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.stake(start, alice, 100_000)
	h.subscribe(start, alice)
	h.notify(start, 1_000_000)
	h.unsubscribe(start+10_000, alice)

	unclaimed := h.userRewardData(alice).UnclaimedRewards.Clone()
	require.False(t, unclaimed.IsZero())
	before := h.rewardData().RewardBalance.Clone()

	require.NoError(t, h.claim(start+20_000, alice, unclaimed.Uint64()))

	assert.True(t, h.userRewardData(alice).UnclaimedRewards.Int().IsZero())
	after := h.rewardData().RewardBalance.Clone()
	assert.Equal(t, new(uint256.Int).Sub(before, unclaimed).Dec(), after.Dec())
}

func TestUnallocatedRewardsFoldIntoNextNotify(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.notify(start, 500_000)
	assert.Equal(t, "5787037037037", h.rewardData().RewardRate.String())

	// subscribing accrues the pool while it still has no weight
	half := start + duration/2
	h.stake(half, alice, 1_000)
	h.subscribe(half, alice)

	rd := h.rewardData()
	assert.InDelta(t, 250_000, float64(rd.UnallocatedRewards.Int().Uint64()), 1)
	assert.True(t, rd.RewardPerTokenStored.Int().IsZero())

	h.notify(half, 5_000_000)

	// leftover 249,999 + unallocated 249,999 + 5,000,000 over the new duration
	rd = h.rewardData()
	assert.Equal(t, "63657384259259", rd.RewardRate.String())
	assert.True(t, rd.UnallocatedRewards.Int().IsZero())
	assert.Equal(t, half+duration, rd.PeriodFinish)
	assert.Equal(t, "5500000", rd.TotalDistributed.String())
	assert.Equal(t, "5500000", rd.RewardBalance.String())
}

func TestZeroAmountNotifyRestartsPeriod(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.notify(start+50, 0)

	rd := h.rewardData()
	assert.True(t, rd.RewardRate.Int().IsZero())
	assert.Equal(t, start+50+duration, rd.PeriodFinish)
	assert.Equal(t, start+50, rd.LastUpdateTime)
	assert.True(t, rd.TotalDistributed.Int().IsZero())
	assert.Equal(t, uint64(1), h.module().NotifyCount)
}

func TestNotifyWithZeroDurationIsRejected(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, 0)

	err := h.apply(start, &blockchain.RewardNotifiedEvent{PoolAddress: poolAddress, RewardToken: rewardToken, RewardAmount: uint256.NewInt(10)})
	assert.ErrorIs(t, err, rewards.ErrZeroDuration)
	assert.True(t, IsRejection(err))
}

func TestNotifySuppliedRateIsAuthoritative(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)

	supplied := uint256.NewInt(11_574_074_074_000)
	h.mustApply(start, &blockchain.RewardNotifiedEvent{
		PoolAddress:  poolAddress,
		RewardToken:  rewardToken,
		RewardAmount: uint256.NewInt(1_000_000),
		RewardRate:   supplied,
		PeriodFinish: start + duration - 1,
	})

	rd := h.rewardData()
	assert.Equal(t, supplied.Dec(), rd.RewardRate.String())
	assert.Equal(t, start+duration-1, rd.PeriodFinish)

	err := h.apply(start+10, &blockchain.RewardNotifiedEvent{
		PoolAddress:  poolAddress,
		RewardToken:  rewardToken,
		RewardAmount: uint256.NewInt(1),
		RewardRate:   supplied,
		PeriodFinish: start + 5,
	})
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestFairProportionality(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.stake(start, alice, 300_000)
	h.stake(start, bob, 100_000)
	h.subscribe(start, alice)
	h.subscribe(start, bob)
	h.notify(start, 1_000_000)

	h.unsubscribe(start+duration, alice)
	h.unsubscribe(start+duration, bob)

	aliceEarned := h.userRewardData(alice).UnclaimedRewards.Int().Uint64()
	bobEarned := h.userRewardData(bob).UnclaimedRewards.Int().Uint64()
	assert.Equal(t, uint64(749_999), aliceEarned)
	assert.Equal(t, uint64(249_999), bobEarned)
	assert.InDelta(t, float64(aliceEarned), float64(3*bobEarned), 3)
}

func TestConservationAndMonotonicity(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)

	steps := []struct {
		at    uint64
		event blockchain.Event
	}{
		{start, &blockchain.StakeEvent{User: alice, StakingToken: stakingToken, Amount: uint256.NewInt(100_000)}},
		{start, &blockchain.SubscriptionEvent{User: alice, PoolAddress: poolAddress, StakingToken: stakingToken}},
		{start, &blockchain.RewardNotifiedEvent{PoolAddress: poolAddress, RewardToken: rewardToken, RewardAmount: uint256.NewInt(1_000_000)}},
		{start + 1_000, &blockchain.StakeEvent{User: bob, StakingToken: stakingToken, Amount: uint256.NewInt(50_000)}},
		{start + 1_000, &blockchain.SubscriptionEvent{User: bob, PoolAddress: poolAddress, StakingToken: stakingToken}},
		{start + 2_000, &blockchain.StakeEvent{User: alice, StakingToken: stakingToken, Amount: uint256.NewInt(25_000)}},
		{start + 5_000, &blockchain.RewardClaimedEvent{PoolAddress: poolAddress, User: alice, RewardToken: rewardToken, RewardAmount: uint256.NewInt(1_000)}},
		{start + 6_000, &blockchain.WithdrawEvent{User: bob, StakingToken: stakingToken, Amount: uint256.NewInt(20_000)}},
		{start + 7_000, &blockchain.RewardClaimedEvent{PoolAddress: poolAddress, User: bob, RewardToken: rewardToken, RewardAmount: uint256.NewInt(500)}},
		{start + 8_000, &blockchain.UnsubscriptionEvent{User: bob, PoolAddress: poolAddress, StakingToken: stakingToken}},
		{start + 9_000, &blockchain.RewardNotifiedEvent{PoolAddress: poolAddress, RewardToken: rewardToken, RewardAmount: uint256.NewInt(200_000)}},
		{start + 10_000, &blockchain.RewardClaimedEvent{PoolAddress: poolAddress, User: alice, RewardToken: rewardToken, RewardAmount: uint256.NewInt(2_000)}},
		{start + 11_000, &blockchain.EmergencyWithdrawEvent{User: alice, StakingToken: stakingToken, Amount: uint256.NewInt(125_000)}},
		{start + 12_000, &blockchain.RewardClaimedEvent{PoolAddress: poolAddress, User: bob, RewardToken: rewardToken, RewardAmount: uint256.NewInt(100)}},
	}

	previous := new(uint256.Int)
	for _, step := range steps {
		h.mustApply(step.at, step.event)

		rd := h.rewardData()
		stored := rd.RewardPerTokenStored.Clone()
		assert.False(t, stored.Lt(previous), "accumulator decreased at %s", step.event.Kind())
		previous = stored

		claimed := new(uint256.Int)
		records, err := h.storage.ListUserRewardData(poolAddress.Hex(), rewardToken.Hex())
		require.NoError(t, err)
		for _, record := range records {
			claimed.Add(claimed, record.TotalClaimed.Int())
		}
		expected := new(uint256.Int).Sub(rd.TotalDistributed.Int(), claimed)
		assert.Equal(t, expected.Dec(), rd.RewardBalance.String(), "conservation broken at %s", step.event.Kind())
	}

	pool := h.pool()
	assert.True(t, pool.TotalSubscribed.Int().IsZero())
	assert.Equal(t, uint64(1), pool.SubscriberCount)
	assert.Equal(t, uint64(1), pool.WithdrawalCount)
	assert.Equal(t, uint64(4), pool.ClaimCount)
}

func TestZeroWithdrawIsCheckpoint(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.stake(start, alice, 100_000)
	h.subscribe(start, alice)
	h.notify(start, 1_000_000)

	withdrawZero := &blockchain.WithdrawEvent{User: alice, StakingToken: stakingToken, Amount: uint256.NewInt(0)}
	h.mustApply(start+1_000, withdrawZero)
	first := h.userRewardData(alice).UnclaimedRewards.Clone()
	require.False(t, first.IsZero())

	h.mustApply(start+1_000, withdrawZero)
	assert.Equal(t, first.Dec(), h.userRewardData(alice).UnclaimedRewards.String())

	assert.Equal(t, uint64(2), h.pool().WithdrawalCount)
	assert.Equal(t, uint64(2), h.module().WithdrawalCount)
	assert.Equal(t, "100000", h.pool().TotalSubscribed.String())
}

func TestSettlementUsesWeightBeforeStake(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.stake(start, alice, 100_000)
	h.subscribe(start, alice)
	h.notify(start, 1_000_000)

	h.stake(start+duration/2, alice, 900_000)

	// the first half was earned on 100,000 alone
	assert.Equal(t, "499999", h.userRewardData(alice).UnclaimedRewards.String())
	assert.Equal(t, "1000000", h.pool().TotalSubscribed.String())
	assert.Equal(t, "1000000", h.balance(alice).Amount.String())
}

func TestEmergencyWithdrawForfeitsUnsettledRewards(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.stake(start, alice, 100_000)
	h.subscribe(start, alice)
	h.notify(start, 1_000_000)

	h.mustApply(start+duration/2, &blockchain.EmergencyWithdrawEvent{User: alice, StakingToken: stakingToken, Amount: uint256.NewInt(100_000)})

	assert.True(t, h.balance(alice).Amount.Int().IsZero())
	pool := h.pool()
	assert.True(t, pool.TotalSubscribed.Int().IsZero())
	assert.Equal(t, uint64(1), pool.SubscriberCount)

	subscription, err := h.storage.GetUserSubscription(alice.Hex(), poolAddress.Hex())
	require.NoError(t, err)
	assert.True(t, subscription.IsCurrentlySubscribed)

	// staking again settles at the zero weight left behind
	h.stake(start+duration/2+100, alice, 100)
	assert.True(t, h.userRewardData(alice).UnclaimedRewards.Int().IsZero())
	assert.Equal(t, "100", h.pool().TotalSubscribed.String())
	assert.False(t, h.rewardData().UnallocatedRewards.Int().IsZero())
	assert.Equal(t, uint64(1), h.module().EmergencyWithdrawalCount)
}

func TestResubscribeDoesNotEarnRetroactively(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.stake(start, alice, 100_000)
	h.stake(start, bob, 100_000)
	h.subscribe(start, alice)
	h.subscribe(start, bob)
	h.notify(start, 1_000_000)

	h.unsubscribe(start+1_000, alice)
	earned := h.userRewardData(alice).UnclaimedRewards.Clone()

	h.subscribe(start+5_000, alice)

	urd := h.userRewardData(alice)
	assert.Equal(t, earned.Dec(), urd.UnclaimedRewards.String())
	assert.Equal(t, h.rewardData().RewardPerTokenStored.String(), urd.RewardPerTokenPaid.String())

	pool := h.pool()
	assert.Equal(t, uint64(2), pool.SubscriberCount)
	assert.Equal(t, "200000", pool.TotalSubscribed.String())
	assert.Equal(t, uint64(3), h.module().SubscriptionCount)
	assert.Equal(t, uint64(1), h.module().UnsubscriptionCount)
}

func TestSubscriptionCheckpointsAtCurrentAccumulator(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.stake(start, alice, 100_000)
	h.subscribe(start, alice)
	h.notify(start, 1_000_000)

	h.stake(start+1_000, bob, 100_000)
	h.subscribe(start+1_000, bob)

	urd := h.userRewardData(bob)
	assert.False(t, urd.RewardPerTokenPaid.Int().IsZero())
	assert.Equal(t, h.rewardData().RewardPerTokenStored.String(), urd.RewardPerTokenPaid.String())
	assert.True(t, urd.UnclaimedRewards.Int().IsZero())
}

func TestRewardAddedSeedsSubscribedUsers(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.stake(start, alice, 100)
	h.subscribe(start, alice)

	second := common.HexToAddress("0x000000000000000000000000000000000000d002")
	h.mustApply(start+10, &blockchain.RewardAddedEvent{PoolAddress: poolAddress, RewardToken: second, RewardsDistributor: distributor, RewardsDuration: duration})

	urd, err := h.storage.GetUserRewardData(alice.Hex(), poolAddress.Hex(), second.Hex())
	require.NoError(t, err)
	assert.True(t, urd.RewardPerTokenPaid.Int().IsZero())
	assert.Equal(t, []string{rewardToken.Hex(), second.Hex()}, h.pool().RewardTokens)

	// notify on one token accrues the others
	h.notify(start+10, 1_000)
	h.mustApply(start+20, &blockchain.RewardNotifiedEvent{PoolAddress: poolAddress, RewardToken: second, RewardAmount: uint256.NewInt(1_000)})
	assert.Equal(t, start+20, h.rewardData().LastUpdateTime)
}

func TestRejections(t *testing.T) {
	amount := uint256.NewInt(10)
	other := common.HexToAddress("0x000000000000000000000000000000000000beef")

	tests := []struct {
		name   string
		setup  func(h *harness)
		event  blockchain.Event
		target error
	}{
		{
			name:   "reward added to missing pool",
			event:  &blockchain.RewardAddedEvent{PoolAddress: other, RewardToken: rewardToken, RewardsDuration: duration},
			target: ErrMissingEntity,
		},
		{
			name:   "pool created twice",
			setup:  func(h *harness) { h.createPool(start, duration) },
			event:  &blockchain.StakingPoolCreatedEvent{Creator: creator, PoolAddress: poolAddress, StakingToken: stakingToken},
			target: ErrInvariant,
		},
		{
			name:   "reward token added twice",
			setup:  func(h *harness) { h.createPool(start, duration) },
			event:  &blockchain.RewardAddedEvent{PoolAddress: poolAddress, RewardToken: rewardToken, RewardsDuration: duration},
			target: ErrInvariant,
		},
		{
			name:   "notify for unknown reward token",
			setup:  func(h *harness) { h.createPool(start, duration) },
			event:  &blockchain.RewardNotifiedEvent{PoolAddress: poolAddress, RewardToken: other, RewardAmount: amount},
			target: ErrMissingEntity,
		},
		{
			name:   "subscribe without stake",
			setup:  func(h *harness) { h.createPool(start, duration) },
			event:  &blockchain.SubscriptionEvent{User: alice, PoolAddress: poolAddress, StakingToken: stakingToken},
			target: ErrMissingEntity,
		},
		{
			name: "subscribe with another staking token",
			setup: func(h *harness) {
				h.createPool(start, duration)
				h.stake(start, alice, 10)
			},
			event:  &blockchain.SubscriptionEvent{User: alice, PoolAddress: poolAddress, StakingToken: other},
			target: ErrInvariant,
		},
		{
			name: "subscribe twice",
			setup: func(h *harness) {
				h.createPool(start, duration)
				h.stake(start, alice, 10)
				h.subscribe(start, alice)
			},
			event:  &blockchain.SubscriptionEvent{User: alice, PoolAddress: poolAddress, StakingToken: stakingToken},
			target: ErrInvariant,
		},
		{
			name:   "unsubscribe without subscription",
			setup:  func(h *harness) { h.createPool(start, duration) },
			event:  &blockchain.UnsubscriptionEvent{User: alice, PoolAddress: poolAddress, StakingToken: stakingToken},
			target: ErrMissingEntity,
		},
		{
			name: "unsubscribe twice",
			setup: func(h *harness) {
				h.createPool(start, duration)
				h.stake(start, alice, 10)
				h.subscribe(start, alice)
				h.unsubscribe(start, alice)
			},
			event:  &blockchain.UnsubscriptionEvent{User: alice, PoolAddress: poolAddress, StakingToken: stakingToken},
			target: ErrInvariant,
		},
		{
			name:   "withdraw without stake",
			event:  &blockchain.WithdrawEvent{User: alice, StakingToken: stakingToken, Amount: amount},
			target: ErrMissingEntity,
		},
		{
			name: "withdraw above balance",
			setup: func(h *harness) {
				h.createPool(start, duration)
				h.stake(start, alice, 5)
			},
			event:  &blockchain.WithdrawEvent{User: alice, StakingToken: stakingToken, Amount: amount},
			target: ErrInvariant,
		},
		{
			name:   "emergency withdraw without stake",
			event:  &blockchain.EmergencyWithdrawEvent{User: alice, StakingToken: stakingToken, Amount: amount},
			target: ErrMissingEntity,
		},
		{
			name: "claim before subscribe",
			setup: func(h *harness) {
				h.createPool(start, duration)
				h.notify(start, 1_000)
			},
			event:  &blockchain.RewardClaimedEvent{PoolAddress: poolAddress, User: bob, RewardToken: rewardToken, RewardAmount: amount},
			target: ErrMissingEntity,
		},
		{
			name: "claim above reward balance",
			setup: func(h *harness) {
				h.createPool(start, duration)
				h.stake(start, alice, 10)
				h.subscribe(start, alice)
			},
			event:  &blockchain.RewardClaimedEvent{PoolAddress: poolAddress, User: alice, RewardToken: rewardToken, RewardAmount: uint256.NewInt(1)},
			target: ErrInvariant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, WithClaimTolerance(uint256.NewInt(1)))
			if tt.setup != nil {
				tt.setup(h)
			}
			applied := h.module().AppliedCount

			err := h.apply(start+1, tt.event)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, IsRejection(err))
			assert.Equal(t, applied, h.module().AppliedCount)

			events, err := h.storage.ListEvents(storage.EventFilter{Kind: tt.event.Kind()})
			require.NoError(t, err)
			for _, event := range events {
				assert.LessOrEqual(t, event.Timestamp, start)
			}
		})
	}
}

func TestPrecisionHoldsForShortDurations(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, 10)
	h.stake(start, alice, 3)
	h.subscribe(start, alice)
	h.notify(start, 1_000)

	h.unsubscribe(start+10, alice)

	earned := h.userRewardData(alice).UnclaimedRewards.Clone()
	assert.Equal(t, "999", earned.Dec())
}

var secondPool = common.HexToAddress("0x000000000000000000000000000000000000a002")

// addSecondPool creates a pool sharing stakingToken, subscribes user to it and funds it.
func (h *harness) addSecondPool(timestamp uint64, user common.Address, reward uint64) {
	h.t.Helper()
	h.mustApply(timestamp, &blockchain.StakingPoolCreatedEvent{Creator: creator, PoolAddress: secondPool, StakingToken: stakingToken})
	h.mustApply(timestamp, &blockchain.RewardAddedEvent{
		PoolAddress:        secondPool,
		RewardToken:        rewardToken,
		RewardsDistributor: distributor,
		RewardsDuration:    duration,
	})
	h.mustApply(timestamp, &blockchain.SubscriptionEvent{User: user, PoolAddress: secondPool, StakingToken: stakingToken})
	h.mustApply(timestamp, &blockchain.RewardNotifiedEvent{PoolAddress: secondPool, RewardToken: rewardToken, RewardAmount: uint256.NewInt(reward)})
}

func (h *harness) poolAt(address common.Address) *storage.StakingPool {
	h.t.Helper()
	pool, err := h.storage.GetPool(address.Hex())
	require.NoError(h.t, err)
	return pool
}

func (h *harness) userRewardDataAt(user common.Address, address common.Address) *storage.UserRewardData {
	h.t.Helper()
	urd, err := h.storage.GetUserRewardData(user.Hex(), address.Hex(), rewardToken.Hex())
	require.NoError(h.t, err)
	return urd
}

func TestStakeAndWithdrawSpanEverySubscribedPool(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.stake(start, alice, 100_000)
	h.subscribe(start, alice)
	h.notify(start, 1_000_000)
	h.addSecondPool(start, alice, 1_000_000)

	for _, address := range []common.Address{poolAddress, secondPool} {
		assert.Equal(t, "100000", h.poolAt(address).TotalSubscribed.String(), address.Hex())
	}

	h.stake(start+duration/2, alice, 50_000)

	for _, address := range []common.Address{poolAddress, secondPool} {
		assert.Equal(t, "150000", h.poolAt(address).TotalSubscribed.String(), address.Hex())
		urd := h.userRewardDataAt(alice, address)
		assert.Equal(t, "499999", urd.UnclaimedRewards.String(), address.Hex())
		assert.Equal(t, "4999999999999", urd.RewardPerTokenPaid.String(), address.Hex())
	}

	h.mustApply(start+duration, &blockchain.WithdrawEvent{User: alice, StakingToken: stakingToken, Amount: uint256.NewInt(150_000)})

	assert.True(t, h.balance(alice).Amount.Int().IsZero())
	for _, address := range []common.Address{poolAddress, secondPool} {
		pool := h.poolAt(address)
		assert.True(t, pool.TotalSubscribed.Int().IsZero(), address.Hex())
		assert.Equal(t, uint64(1), pool.WithdrawalCount, address.Hex())

		urd := h.userRewardDataAt(alice, address)
		assert.Equal(t, "999998", urd.UnclaimedRewards.String(), address.Hex())
		assert.Equal(t, "8333333333332", urd.RewardPerTokenPaid.String(), address.Hex())
	}
	assert.Equal(t, uint64(1), h.module().WithdrawalCount)
}

func TestEmergencyWithdrawSpansEverySubscribedPool(t *testing.T) {
	h := newHarness(t)
	h.createPool(start, duration)
	h.stake(start, alice, 100_000)
	h.subscribe(start, alice)
	h.notify(start, 1_000_000)
	h.addSecondPool(start, alice, 1_000_000)

	h.mustApply(start+duration/2, &blockchain.EmergencyWithdrawEvent{User: alice, StakingToken: stakingToken, Amount: uint256.NewInt(100_000)})

	assert.True(t, h.balance(alice).Amount.Int().IsZero())
	for _, address := range []common.Address{poolAddress, secondPool} {
		pool := h.poolAt(address)
		assert.True(t, pool.TotalSubscribed.Int().IsZero(), address.Hex())
		assert.Equal(t, uint64(0), pool.WithdrawalCount, address.Hex())

		rd, err := h.storage.GetRewardData(address.Hex(), rewardToken.Hex())
		require.NoError(t, err)
		assert.Equal(t, "4999999999999", rd.RewardPerTokenStored.String(), address.Hex())

		// nothing was settled, so the half period of earnings is forfeited
		assert.True(t, h.userRewardDataAt(alice, address).UnclaimedRewards.Int().IsZero(), address.Hex())
	}
	assert.Equal(t, uint64(1), h.module().EmergencyWithdrawalCount)
}
