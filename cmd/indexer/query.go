package main

import (
	"os"
	"strconv"
	"strings"

	"indexer/internal/fixedpoint"
	"indexer/internal/rewards"
	"indexer/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var (
	poolFlag = &cli.StringFlag{
		Name:  "pool",
		Usage: "pool address",
	}
	userFlag = &cli.StringFlag{
		Name:  "user",
		Usage: "user address",
	}
	kindFlag = &cli.StringFlag{
		Name:  "kind",
		Usage: "event kind, e.g. Stake or RewardClaimed",
	}
	limitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "maximum number of rows",
		Value: 100,
	}
)

var commandPools = &cli.Command{
	Name:  "pools",
	Usage: "list staking pools",
	Action: func(c *cli.Context) error {
		return withStorage(c, func(st storage.Storage) error {
			pools, err := st.ListPools()
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Pool", "Staking token", "Total subscribed", "Subscribers", "Withdrawals", "Claims", "Reward tokens"})
			for _, pool := range pools {
				table.Append([]string{
					pool.Address,
					pool.StakingToken,
					pool.TotalSubscribed.String(),
					strconv.FormatUint(pool.SubscriberCount, 10),
					strconv.FormatUint(pool.WithdrawalCount, 10),
					strconv.FormatUint(pool.ClaimCount, 10),
					strings.Join(pool.RewardTokens, "\n"),
				})
			}
			table.Render()
			return nil
		})
	},
}

var commandRewards = &cli.Command{
	Name:  "rewards",
	Usage: "show the reward schedule of every reward token of a pool",
	Flags: []cli.Flag{poolFlag},
	Action: func(c *cli.Context) error {
		pool, err := addressFlag(c, poolFlag)
		if err != nil {
			return err
		}

		return withStorage(c, func(st storage.Storage) error {
			rewardData, err := st.GetRewardDataByPool(pool)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Reward token", "Rate per second", "Reward per token", "Period finish", "Last update", "Balance", "Unallocated", "Distributed"})
			for _, rd := range rewardData {
				table.Append([]string{
					rd.RewardToken,
					fixedpoint.Format(rd.RewardRate.Int()),
					fixedpoint.Format(rd.RewardPerTokenStored.Int()),
					strconv.FormatUint(rd.PeriodFinish, 10),
					strconv.FormatUint(rd.LastUpdateTime, 10),
					rd.RewardBalance.String(),
					rd.UnallocatedRewards.String(),
					rd.TotalDistributed.String(),
				})
			}
			table.Render()
			return nil
		})
	},
}

var commandUser = &cli.Command{
	Name:  "user",
	Usage: "show a user's stake and rewards in a pool, as of the last applied event",
	Flags: []cli.Flag{userFlag, poolFlag},
	Action: func(c *cli.Context) error {
		user, err := addressFlag(c, userFlag)
		if err != nil {
			return err
		}
		poolAddress, err := addressFlag(c, poolFlag)
		if err != nil {
			return err
		}

		return withStorage(c, func(st storage.Storage) error {
			pool, err := st.GetPool(poolAddress)
			if err != nil {
				return err
			}

			weight := new(uint256.Int)
			staked := "0"
			if balance, err := st.GetUserStakedBalance(user, pool.StakingToken); err == nil {
				staked = balance.Amount.String()
				if subscription, err := st.GetUserSubscription(user, pool.Address); err == nil && subscription.IsCurrentlySubscribed {
					weight = balance.Amount.Clone()
				}
			}

			rewardData, err := st.GetRewardDataByPool(pool.Address)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Reward token", "Staked", "Weight", "Checkpoint", "Unclaimed", "Earned", "Claimed"})
			for _, rd := range rewardData {
				userRewardData, err := st.GetUserRewardData(user, pool.Address, rd.RewardToken)
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				earned, err := rewards.Earned(userRewardData, rd, weight)
				if err != nil {
					return err
				}
				table.Append([]string{
					rd.RewardToken,
					staked,
					weight.Dec(),
					userRewardData.RewardPerTokenPaid.String(),
					userRewardData.UnclaimedRewards.String(),
					earned.Dec(),
					userRewardData.TotalClaimed.String(),
				})
			}
			table.Render()
			return nil
		})
	},
}

var commandEvents = &cli.Command{
	Name:  "events",
	Usage: "list applied events",
	Flags: []cli.Flag{kindFlag, poolFlag, userFlag, limitFlag},
	Action: func(c *cli.Context) error {
		filter := storage.EventFilter{
			Kind:  c.String(kindFlag.Name),
			Limit: c.Int(limitFlag.Name),
		}
		if c.IsSet(poolFlag.Name) {
			pool, err := addressFlag(c, poolFlag)
			if err != nil {
				return err
			}
			filter.PoolAddress = pool
		}
		if c.IsSet(userFlag.Name) {
			user, err := addressFlag(c, userFlag)
			if err != nil {
				return err
			}
			filter.User = user
		}

		return withStorage(c, func(st storage.Storage) error {
			events, err := st.ListEvents(filter)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Kind", "Seq", "Position", "Timestamp", "Pool", "User", "Reward token", "Amount"})
			for _, event := range events {
				table.Append([]string{
					event.Kind,
					strconv.FormatUint(event.Seq, 10),
					strconv.FormatUint(event.BlockNumber, 10) + ":" + strconv.FormatUint(event.LogIndex, 10),
					strconv.FormatUint(event.Timestamp, 10),
					event.PoolAddress,
					event.User,
					event.RewardToken,
					event.Amount.String(),
				})
			}
			table.Render()
			return nil
		})
	},
}

func withStorage(c *cli.Context, fn func(st storage.Storage) error) error {
	configuration, err := loadConfiguration(c)
	if err != nil {
		return err
	}

	sqliteStorage, err := storage.NewSqliteStorage(configuration.DatabasePath)
	if err != nil {
		return err
	}
	defer sqliteStorage.Close()

	return fn(sqliteStorage)
}

// addressFlag reads a required address flag in the checksummed form used as store key.
func addressFlag(c *cli.Context, flag *cli.StringFlag) (string, error) {
	value := c.String(flag.Name)
	if !common.IsHexAddress(value) {
		return "", errors.Errorf("--%s: invalid address %q", flag.Name, value)
	}
	return common.HexToAddress(value).Hex(), nil
}
