package storage

import (
	"context"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("storage: record not found")

type Storage interface {
	// Transaction runs fn against a transactional view; any error rolls back every write.
	Transaction(ctx context.Context, fn func(tx Storage) error) error

	// module
	GetModule() (*Module, error)
	UpdateModule(module *Module) error

	// pool
	GetPool(address string) (*StakingPool, error)
	ListPools() ([]*StakingPool, error)
	UpdatePool(pool *StakingPool) error

	// reward data
	GetRewardData(poolAddress string, rewardToken string) (*RewardData, error)
	GetRewardDataByPool(poolAddress string) ([]*RewardData, error)
	UpdateRewardData(rewardData *RewardData) error

	// user staked balance
	GetUserStakedBalance(user string, stakingToken string) (*UserStakedBalance, error)
	UpdateUserStakedBalance(balance *UserStakedBalance) error

	// user subscription
	GetUserSubscription(user string, poolAddress string) (*UserSubscription, error)
	GetActiveUserSubscriptions(user string, stakingToken string) ([]*UserSubscription, error)
	GetActivePoolSubscriptions(poolAddress string) ([]*UserSubscription, error)
	UpdateUserSubscription(subscription *UserSubscription) error

	// user reward data
	GetUserRewardData(user string, poolAddress string, rewardToken string) (*UserRewardData, error)
	GetOrCreateUserRewardData(user string, rewardData *RewardData) (*UserRewardData, bool, error)
	ListUserRewardData(poolAddress string, rewardToken string) ([]*UserRewardData, error)
	UpdateUserRewardData(userRewardData *UserRewardData) error

	// derived events
	InsertEvent(event *Event) error
	GetEventAt(blockNumber uint64, logIndex uint64) (*Event, error)
	ListEvents(filter EventFilter) ([]*Event, error)
}

type EventKind = string

const (
	StakingPoolCreatedEventKind = EventKind("StakingPoolCreated")
	RewardAddedEventKind        = EventKind("RewardAdded")
	RewardNotifiedEventKind     = EventKind("RewardNotified")
	StakeEventKind              = EventKind("Stake")
	WithdrawEventKind           = EventKind("Withdraw")
	EmergencyWithdrawEventKind  = EventKind("EmergencyWithdraw")
	SubscriptionEventKind       = EventKind("Subscription")
	UnsubscriptionEventKind     = EventKind("Unsubscription")
	RewardClaimedEventKind      = EventKind("RewardClaimed")
)
