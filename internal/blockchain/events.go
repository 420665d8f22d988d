package blockchain

import (
	"fmt"

	"indexer/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Position identifies a log in the chain: block, then log index within the block.
type Position struct {
	BlockNumber uint64
	LogIndex    uint64
	TxHash      common.Hash
}

// After reports whether p comes strictly later in the chain than other.
func (p Position) After(other Position) bool {
	if p.BlockNumber != other.BlockNumber {
		return p.BlockNumber > other.BlockNumber
	}
	return p.LogIndex > other.LogIndex
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.BlockNumber, p.LogIndex)
}

// Envelope is one decoded protocol event together with where and when it happened.
type Envelope struct {
	Position
	Timestamp uint64
	Event     Event
}

type Event interface {
	Kind() storage.EventKind
}

type StakingPoolCreatedEvent struct {
	Creator      common.Address
	PoolAddress  common.Address
	StakingToken common.Address
}

type RewardAddedEvent struct {
	PoolAddress        common.Address
	RewardToken        common.Address
	RewardsDistributor common.Address
	RewardsDuration    uint64
}

// RewardNotifiedEvent carries the rate and period finish computed by the
// contract. A nil RewardRate means the source did not supply them.
type RewardNotifiedEvent struct {
	PoolAddress  common.Address
	RewardToken  common.Address
	RewardAmount *uint256.Int
	RewardRate   *uint256.Int
	PeriodFinish uint64
}

type StakeEvent struct {
	User         common.Address
	StakingToken common.Address
	Amount       *uint256.Int
}

type WithdrawEvent struct {
	User         common.Address
	StakingToken common.Address
	Amount       *uint256.Int
}

type EmergencyWithdrawEvent struct {
	User         common.Address
	StakingToken common.Address
	Amount       *uint256.Int
}

type SubscriptionEvent struct {
	User         common.Address
	PoolAddress  common.Address
	StakingToken common.Address
}

type UnsubscriptionEvent struct {
	User         common.Address
	PoolAddress  common.Address
	StakingToken common.Address
}

type RewardClaimedEvent struct {
	PoolAddress  common.Address
	User         common.Address
	RewardToken  common.Address
	RewardAmount *uint256.Int
}

func (*StakingPoolCreatedEvent) Kind() storage.EventKind { return storage.StakingPoolCreatedEventKind }
func (*RewardAddedEvent) Kind() storage.EventKind        { return storage.RewardAddedEventKind }
func (*RewardNotifiedEvent) Kind() storage.EventKind     { return storage.RewardNotifiedEventKind }
func (*StakeEvent) Kind() storage.EventKind              { return storage.StakeEventKind }
func (*WithdrawEvent) Kind() storage.EventKind           { return storage.WithdrawEventKind }
func (*EmergencyWithdrawEvent) Kind() storage.EventKind  { return storage.EmergencyWithdrawEventKind }
func (*SubscriptionEvent) Kind() storage.EventKind       { return storage.SubscriptionEventKind }
func (*UnsubscriptionEvent) Kind() storage.EventKind     { return storage.UnsubscriptionEventKind }
func (*RewardClaimedEvent) Kind() storage.EventKind      { return storage.RewardClaimedEventKind }
