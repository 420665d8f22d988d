package storage

import (
	"slices"
	"time"
)

type StakingPool struct {
	Address          string   `gorm:"primaryKey"`
	StakingToken     string   `gorm:"index;not null"`
	Creator          string   `gorm:"not null"`
	TotalSubscribed  Amount   `gorm:"type:text;not null"`
	RewardTokens     []string `gorm:"serializer:json"`
	WithdrawalCount  uint64   `gorm:"not null"`
	ClaimCount       uint64   `gorm:"not null"`
	SubscriberCount  uint64   `gorm:"not null"`
	CreatedTimestamp uint64   `gorm:"not null"`
}

func (p *StakingPool) HasRewardToken(token string) bool {
	return slices.Contains(p.RewardTokens, token)
}

type RewardData struct {
	PoolAddress          string `gorm:"primaryKey"`
	RewardToken          string `gorm:"primaryKey"`
	Distributor          string `gorm:"not null"`
	Duration             uint64 `gorm:"not null"`
	RewardRate           Amount `gorm:"type:text;not null"`
	RewardPerTokenStored Amount `gorm:"type:text;not null"`
	PeriodFinish         uint64 `gorm:"not null"`
	LastUpdateTime       uint64 `gorm:"not null"`
	RewardBalance        Amount `gorm:"type:text;not null"`
	UnallocatedRewards   Amount `gorm:"type:text;not null"`
	TotalDistributed     Amount `gorm:"type:text;not null"`
}

type UserStakedBalance struct {
	User         string `gorm:"primaryKey"`
	StakingToken string `gorm:"primaryKey"`
	Amount       Amount `gorm:"type:text;not null"`
}

type UserSubscription struct {
	User                  string `gorm:"primaryKey"`
	PoolAddress           string `gorm:"primaryKey"`
	StakingToken          string `gorm:"index;not null"`
	IsCurrentlySubscribed bool   `gorm:"index;not null"`
}

type UserRewardData struct {
	User               string `gorm:"primaryKey"`
	PoolAddress        string `gorm:"primaryKey"`
	RewardToken        string `gorm:"primaryKey"`
	RewardPerTokenPaid Amount `gorm:"type:text;not null"`
	UnclaimedRewards   Amount `gorm:"type:text;not null"`
	TotalClaimed       Amount `gorm:"type:text;not null"`
}

// ModuleID is the primary key of the single Module row.
const ModuleID = 1

// Module holds the process-wide sequence counters and the feed cursor.
type Module struct {
	ID                       uint `gorm:"primaryKey"`
	PoolCount                uint64
	RewardAddedCount         uint64
	NotifyCount              uint64
	StakeCount               uint64
	WithdrawalCount          uint64
	EmergencyWithdrawalCount uint64
	SubscriptionCount        uint64
	UnsubscriptionCount      uint64
	ClaimCount               uint64

	AppliedCount    uint64
	LastBlockNumber uint64
	LastLogIndex    uint64
	LastTimestamp   uint64
	UpdatedAt       time.Time
}

// Event is a derived record of an applied input event, numbered per kind.
type Event struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	Kind         EventKind `gorm:"uniqueIndex:idx_event_kind_seq;not null"`
	Seq          uint64    `gorm:"uniqueIndex:idx_event_kind_seq;not null"`
	PoolAddress  string    `gorm:"index"`
	User         string    `gorm:"index"`
	StakingToken string    `gorm:"index"`
	RewardToken  string    `gorm:"index"`
	Amount       Amount    `gorm:"type:text;not null"`
	Timestamp    uint64    `gorm:"not null"`
	BlockNumber  uint64    `gorm:"index:idx_event_position"`
	LogIndex     uint64    `gorm:"index:idx_event_position"`
	TxHash       string
}

// EventFilter selects events by equality on every non-empty field.
type EventFilter struct {
	Kind         EventKind
	PoolAddress  string
	User         string
	StakingToken string
	RewardToken  string
	Limit        int
}
