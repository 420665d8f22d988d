package blockchain

import (
	"context"
	"io"
	"os"

	"indexer/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Source delivers envelopes in chain order. Next returns io.EOF once the feed is exhausted.
type Source interface {
	Next(ctx context.Context) (*Envelope, error)
}

type SliceSource struct {
	envelopes []*Envelope
	next      int
}

func NewSliceSource(envelopes ...*Envelope) *SliceSource {
	return &SliceSource{envelopes: envelopes}
}

func (s *SliceSource) Next(ctx context.Context) (*Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.envelopes) {
		return nil, io.EOF
	}
	envelope := s.envelopes[s.next]
	s.next++
	return envelope, nil
}

// Record is the flat, textual form of an envelope used by replay files.
type Record struct {
	Kind         string `yaml:"kind"`
	Block        uint64 `yaml:"block"`
	LogIndex     uint64 `yaml:"log_index"`
	TxHash       string `yaml:"tx_hash,omitempty"`
	Timestamp    uint64 `yaml:"timestamp"`
	Creator      string `yaml:"creator,omitempty"`
	Pool         string `yaml:"pool,omitempty"`
	User         string `yaml:"user,omitempty"`
	StakingToken string `yaml:"staking_token,omitempty"`
	RewardToken  string `yaml:"reward_token,omitempty"`
	Distributor  string `yaml:"distributor,omitempty"`
	Duration     uint64 `yaml:"duration,omitempty"`
	Amount       string `yaml:"amount,omitempty"`
	RewardRate   string `yaml:"reward_rate,omitempty"`
	PeriodFinish uint64 `yaml:"period_finish,omitempty"`
}

type replayFile struct {
	Events []Record `yaml:"events"`
}

// LoadFile reads a YAML replay file into a SliceSource.
func LoadFile(path string) (*SliceSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open replay file")
	}
	defer file.Close()

	return Decode(file)
}

func Decode(reader io.Reader) (*SliceSource, error) {
	var replay replayFile
	if err := yaml.NewDecoder(reader).Decode(&replay); err != nil {
		return nil, errors.Wrap(err, "decode replay file")
	}

	envelopes := make([]*Envelope, 0, len(replay.Events))
	for i, record := range replay.Events {
		envelope, err := record.Envelope()
		if err != nil {
			return nil, errors.Wrapf(err, "event #%d", i)
		}
		envelopes = append(envelopes, envelope)
	}

	return NewSliceSource(envelopes...), nil
}

// Envelope converts the record, validating addresses and amounts for its kind.
func (r Record) Envelope() (*Envelope, error) {
	p := parser{}

	var event Event
	switch r.Kind {
	case storage.StakingPoolCreatedEventKind:
		event = &StakingPoolCreatedEvent{
			Creator:      p.address("creator", r.Creator),
			PoolAddress:  p.address("pool", r.Pool),
			StakingToken: p.address("staking_token", r.StakingToken),
		}
	case storage.RewardAddedEventKind:
		event = &RewardAddedEvent{
			PoolAddress:        p.address("pool", r.Pool),
			RewardToken:        p.address("reward_token", r.RewardToken),
			RewardsDistributor: p.address("distributor", r.Distributor),
			RewardsDuration:    r.Duration,
		}
	case storage.RewardNotifiedEventKind:
		notified := &RewardNotifiedEvent{
			PoolAddress:  p.address("pool", r.Pool),
			RewardToken:  p.address("reward_token", r.RewardToken),
			RewardAmount: p.amount("amount", r.Amount),
			PeriodFinish: r.PeriodFinish,
		}
		if r.RewardRate != "" {
			notified.RewardRate = p.amount("reward_rate", r.RewardRate)
		}
		event = notified
	case storage.StakeEventKind:
		event = &StakeEvent{
			User:         p.address("user", r.User),
			StakingToken: p.address("staking_token", r.StakingToken),
			Amount:       p.amount("amount", r.Amount),
		}
	case storage.WithdrawEventKind:
		event = &WithdrawEvent{
			User:         p.address("user", r.User),
			StakingToken: p.address("staking_token", r.StakingToken),
			Amount:       p.amount("amount", r.Amount),
		}
	case storage.EmergencyWithdrawEventKind:
		event = &EmergencyWithdrawEvent{
			User:         p.address("user", r.User),
			StakingToken: p.address("staking_token", r.StakingToken),
			Amount:       p.amount("amount", r.Amount),
		}
	case storage.SubscriptionEventKind:
		event = &SubscriptionEvent{
			User:         p.address("user", r.User),
			PoolAddress:  p.address("pool", r.Pool),
			StakingToken: p.address("staking_token", r.StakingToken),
		}
	case storage.UnsubscriptionEventKind:
		event = &UnsubscriptionEvent{
			User:         p.address("user", r.User),
			PoolAddress:  p.address("pool", r.Pool),
			StakingToken: p.address("staking_token", r.StakingToken),
		}
	case storage.RewardClaimedEventKind:
		event = &RewardClaimedEvent{
			PoolAddress:  p.address("pool", r.Pool),
			User:         p.address("user", r.User),
			RewardToken:  p.address("reward_token", r.RewardToken),
			RewardAmount: p.amount("amount", r.Amount),
		}
	default:
		return nil, errors.Errorf("unknown event kind %q", r.Kind)
	}

	if p.err != nil {
		return nil, errors.Wrap(p.err, r.Kind)
	}

	envelope := &Envelope{
		Position: Position{
			BlockNumber: r.Block,
			LogIndex:    r.LogIndex,
		},
		Timestamp: r.Timestamp,
		Event:     event,
	}
	if r.TxHash != "" {
		envelope.TxHash = common.HexToHash(r.TxHash)
	}
	return envelope, nil
}

// parser keeps the first conversion error so a record can be converted field by field.
type parser struct {
	err error
}

func (p *parser) address(field string, value string) common.Address {
	if p.err != nil {
		return common.Address{}
	}
	if !common.IsHexAddress(value) {
		p.err = errors.Errorf("%s: invalid address %q", field, value)
		return common.Address{}
	}
	return common.HexToAddress(value)
}

func (p *parser) amount(field string, value string) *uint256.Int {
	if p.err != nil {
		return new(uint256.Int)
	}
	if value == "" {
		return new(uint256.Int)
	}
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		p.err = errors.Wrapf(err, "%s: invalid amount %q", field, value)
		return new(uint256.Int)
	}
	return amount
}
