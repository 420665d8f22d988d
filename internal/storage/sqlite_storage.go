package storage

import (
	"context"
	"fmt"

	"indexer/internal/logger"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const busyTimeoutMillis = 5000

type SqliteStorage struct {
	db *gorm.DB
}

func NewSqliteStorage(path string) (*SqliteStorage, error) {

	logger.Debug("initializing database...", zap.String("path", path))
	dsn := fmt.Sprintf("%s?_busy_timeout=%d&_foreign_keys=on", path, busyTimeoutMillis)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "storage: open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "storage: database handle")
	}
	// single writer
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&Module{},
		&StakingPool{},
		&RewardData{},
		&UserStakedBalance{},
		&UserSubscription{},
		&UserRewardData{},
		&Event{},
	)
	if err != nil {
		return nil, errors.Wrap(err, "storage: migrate")
	}

	logger.Debug("initializing database... done")
	return &SqliteStorage{
		db: db,
	}, nil
}

func (s *SqliteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SqliteStorage) Transaction(ctx context.Context, fn func(tx Storage) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SqliteStorage{db: tx})
	})
}

// IsTransient reports whether err is a busy or locked database that may succeed on retry.
func IsTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func first[T any](query *gorm.DB, what string) (*T, error) {
	var record T
	err := query.First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(ErrNotFound, what)
	}
	if err != nil {
		return nil, errors.Wrap(err, what)
	}
	return &record, nil
}

func (s *SqliteStorage) upsert(value interface{}) error {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(value).Error
}

func (s *SqliteStorage) GetModule() (*Module, error) {
	module, err := first[Module](s.db.Where("id = ?", ModuleID), "module")
	if errors.Is(err, ErrNotFound) {
		return &Module{ID: ModuleID}, nil
	}
	return module, err
}

func (s *SqliteStorage) UpdateModule(module *Module) error {
	module.ID = ModuleID
	if err := s.upsert(module); err != nil {
		return errors.Wrap(err, "update module")
	}
	return nil
}

func (s *SqliteStorage) GetPool(address string) (*StakingPool, error) {
	return first[StakingPool](s.db.Where("address = ?", address), "pool "+address)
}

func (s *SqliteStorage) ListPools() ([]*StakingPool, error) {
	var pools []*StakingPool
	if err := s.db.Order("created_timestamp asc, address asc").Find(&pools).Error; err != nil {
		return nil, errors.Wrap(err, "list pools")
	}
	return pools, nil
}

func (s *SqliteStorage) UpdatePool(pool *StakingPool) error {
	logger.Debug("updating pool...", zap.String("pool", pool.Address))

	if err := s.upsert(pool); err != nil {
		return errors.Wrapf(err, "update pool %s", pool.Address)
	}

	logger.Debug("updating pool... done")
	return nil
}

func (s *SqliteStorage) GetRewardData(poolAddress string, rewardToken string) (*RewardData, error) {
	return first[RewardData](
		s.db.Where("pool_address = ? and reward_token = ?", poolAddress, rewardToken),
		"reward data "+poolAddress+"/"+rewardToken,
	)
}

func (s *SqliteStorage) GetRewardDataByPool(poolAddress string) ([]*RewardData, error) {
	var rewardData []*RewardData
	err := s.db.Where("pool_address = ?", poolAddress).Order("reward_token asc").Find(&rewardData).Error
	if err != nil {
		return nil, errors.Wrapf(err, "reward data of pool %s", poolAddress)
	}
	return rewardData, nil
}

func (s *SqliteStorage) UpdateRewardData(rewardData *RewardData) error {
	if err := s.upsert(rewardData); err != nil {
		return errors.Wrapf(err, "update reward data %s/%s", rewardData.PoolAddress, rewardData.RewardToken)
	}
	return nil
}

func (s *SqliteStorage) GetUserStakedBalance(user string, stakingToken string) (*UserStakedBalance, error) {
	return first[UserStakedBalance](
		s.db.Where("user = ? and staking_token = ?", user, stakingToken),
		"staked balance "+user+"/"+stakingToken,
	)
}

func (s *SqliteStorage) UpdateUserStakedBalance(balance *UserStakedBalance) error {
	if err := s.upsert(balance); err != nil {
		return errors.Wrapf(err, "update staked balance %s/%s", balance.User, balance.StakingToken)
	}
	return nil
}

func (s *SqliteStorage) GetUserSubscription(user string, poolAddress string) (*UserSubscription, error) {
	return first[UserSubscription](
		s.db.Where("user = ? and pool_address = ?", user, poolAddress),
		"subscription "+user+"/"+poolAddress,
	)
}

func (s *SqliteStorage) GetActiveUserSubscriptions(user string, stakingToken string) ([]*UserSubscription, error) {
	var subscriptions []*UserSubscription
	err := s.db.
		Where("user = ? and staking_token = ? and is_currently_subscribed = ?", user, stakingToken, true).
		Order("pool_address asc").
		Find(&subscriptions).Error
	if err != nil {
		return nil, errors.Wrapf(err, "active subscriptions of %s", user)
	}
	return subscriptions, nil
}

func (s *SqliteStorage) GetActivePoolSubscriptions(poolAddress string) ([]*UserSubscription, error) {
	var subscriptions []*UserSubscription
	err := s.db.
		Where("pool_address = ? and is_currently_subscribed = ?", poolAddress, true).
		Order("user asc").
		Find(&subscriptions).Error
	if err != nil {
		return nil, errors.Wrapf(err, "active subscriptions of pool %s", poolAddress)
	}
	return subscriptions, nil
}

func (s *SqliteStorage) UpdateUserSubscription(subscription *UserSubscription) error {
	if err := s.upsert(subscription); err != nil {
		return errors.Wrapf(err, "update subscription %s/%s", subscription.User, subscription.PoolAddress)
	}
	return nil
}

func (s *SqliteStorage) GetUserRewardData(user string, poolAddress string, rewardToken string) (*UserRewardData, error) {
	return first[UserRewardData](
		s.db.Where("user = ? and pool_address = ? and reward_token = ?", user, poolAddress, rewardToken),
		"user reward data "+user+"/"+poolAddress+"/"+rewardToken,
	)
}

// GetOrCreateUserRewardData returns the user's record for rewardData's pool and token.
// A missing record is created checkpointed at the current accumulator, so the user
// earns nothing accrued before this call.
func (s *SqliteStorage) GetOrCreateUserRewardData(user string, rewardData *RewardData) (*UserRewardData, bool, error) {
	existing, err := s.GetUserRewardData(user, rewardData.PoolAddress, rewardData.RewardToken)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	logger.Debug("creating user reward data...",
		zap.String("user", user),
		zap.String("pool", rewardData.PoolAddress),
		zap.String("reward token", rewardData.RewardToken),
		zap.Stringer("checkpoint", rewardData.RewardPerTokenStored),
	)

	created := &UserRewardData{
		User:               user,
		PoolAddress:        rewardData.PoolAddress,
		RewardToken:        rewardData.RewardToken,
		RewardPerTokenPaid: AmountFrom(rewardData.RewardPerTokenStored.Clone()),
	}
	if err := s.db.Create(created).Error; err != nil {
		return nil, false, errors.Wrapf(err, "create user reward data %s/%s/%s", user, rewardData.PoolAddress, rewardData.RewardToken)
	}

	return created, true, nil
}

func (s *SqliteStorage) ListUserRewardData(poolAddress string, rewardToken string) ([]*UserRewardData, error) {
	var records []*UserRewardData
	err := s.db.
		Where("pool_address = ? and reward_token = ?", poolAddress, rewardToken).
		Order("user asc").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrapf(err, "user reward data of %s/%s", poolAddress, rewardToken)
	}
	return records, nil
}

func (s *SqliteStorage) UpdateUserRewardData(userRewardData *UserRewardData) error {
	if err := s.upsert(userRewardData); err != nil {
		return errors.Wrapf(err, "update user reward data %s/%s/%s",
			userRewardData.User, userRewardData.PoolAddress, userRewardData.RewardToken)
	}
	return nil
}

func (s *SqliteStorage) InsertEvent(event *Event) error {
	if err := s.db.Create(event).Error; err != nil {
		return errors.Wrapf(err, "insert %s event #%d", event.Kind, event.Seq)
	}
	return nil
}

// GetEventAt returns the derived event recorded for the log at (blockNumber, logIndex).
func (s *SqliteStorage) GetEventAt(blockNumber uint64, logIndex uint64) (*Event, error) {
	return first[Event](
		s.db.Where("block_number = ? and log_index = ?", blockNumber, logIndex),
		fmt.Sprintf("event at %d:%d", blockNumber, logIndex),
	)
}

func (s *SqliteStorage) ListEvents(filter EventFilter) ([]*Event, error) {
	query := s.db.Model(&Event{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.PoolAddress != "" {
		query = query.Where("pool_address = ?", filter.PoolAddress)
	}
	if filter.User != "" {
		query = query.Where("user = ?", filter.User)
	}
	if filter.StakingToken != "" {
		query = query.Where("staking_token = ?", filter.StakingToken)
	}
	if filter.RewardToken != "" {
		query = query.Where("reward_token = ?", filter.RewardToken)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var events []*Event
	if err := query.Order("id asc").Find(&events).Error; err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	return events, nil
}
