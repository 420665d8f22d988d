package tracker

import (
	"indexer/internal/blockchain"
	"indexer/internal/logger"
	"indexer/internal/storage"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Apply applies one envelope, together with the cursor and counter updates, in a
// single store transaction. It returns false without error when the envelope
// was already applied.
func (t *Tracker) Apply(envelope *blockchain.Envelope) (bool, error) {
	kind := envelope.Event.Kind()

	var duplicate bool
	err := t.withRetry(func() error {
		duplicate = false
		return t.storage.Transaction(t.ctx, func(tx storage.Storage) error {
			module, err := tx.GetModule()
			if err != nil {
				return err
			}

			if module.AppliedCount > 0 && !envelope.Position.After(cursor(module)) {
				if err := redelivered(tx, envelope); err != nil {
					return err
				}
				duplicate = true
				return nil
			}
			if envelope.Timestamp < module.LastTimestamp {
				return errors.Wrapf(ErrOutOfOrder, "%s at %d after %d", kind, envelope.Timestamp, module.LastTimestamp)
			}

			derived, err := t.dispatch(tx, envelope)
			if err != nil {
				return err
			}

			seq, err := nextSequence(module, kind)
			if err != nil {
				return err
			}
			derived.Kind = kind
			derived.Seq = seq
			derived.Timestamp = envelope.Timestamp
			derived.BlockNumber = envelope.BlockNumber
			derived.LogIndex = envelope.LogIndex
			derived.TxHash = envelope.TxHash.Hex()
			if err := tx.InsertEvent(derived); err != nil {
				return err
			}

			module.AppliedCount++
			module.LastBlockNumber = envelope.BlockNumber
			module.LastLogIndex = envelope.LogIndex
			module.LastTimestamp = envelope.Timestamp
			return tx.UpdateModule(module)
		})
	})

	switch {
	case err != nil:
		t.metrics.ObserveRejected(kind)
		return false, errors.Wrapf(err, "%s at %s", kind, envelope.Position)
	case duplicate:
		logger.Debug("synchronize: envelope already applied, skipping", zap.String("kind", kind), zap.Stringer("position", envelope.Position))
		t.metrics.ObserveDuplicate()
		return false, nil
	}

	logger.Debug("synchronize: envelope applied", zap.String("kind", kind), zap.Stringer("position", envelope.Position))
	t.metrics.ObserveApplied(kind)
	return true, nil
}

func cursor(module *storage.Module) blockchain.Position {
	return blockchain.Position{BlockNumber: module.LastBlockNumber, LogIndex: module.LastLogIndex}
}

// redelivered accepts an envelope behind the cursor only when it is the log
// already applied at that position.
func redelivered(tx storage.Storage, envelope *blockchain.Envelope) error {
	applied, err := tx.GetEventAt(envelope.BlockNumber, envelope.LogIndex)
	if errors.Is(err, storage.ErrNotFound) {
		return errors.Wrapf(ErrOutOfOrder, "%s at %s is behind the cursor and was never applied",
			envelope.Event.Kind(), envelope.Position)
	}
	if err != nil {
		return err
	}

	if applied.Kind != envelope.Event.Kind() || applied.TxHash != envelope.TxHash.Hex() {
		return errors.Wrapf(ErrOutOfOrder, "%s %s at %s differs from applied %s %s",
			envelope.Event.Kind(), envelope.TxHash.Hex(), envelope.Position, applied.Kind, applied.TxHash)
	}
	return nil
}

func (t *Tracker) dispatch(tx storage.Storage, envelope *blockchain.Envelope) (*storage.Event, error) {
	now := envelope.Timestamp

	switch event := envelope.Event.(type) {
	case *blockchain.StakingPoolCreatedEvent:
		return t.stakingPoolCreated(tx, now, event)
	case *blockchain.RewardAddedEvent:
		return t.rewardAdded(tx, now, event)
	case *blockchain.RewardNotifiedEvent:
		return t.rewardNotified(tx, now, event)
	case *blockchain.StakeEvent:
		return t.stake(tx, now, event)
	case *blockchain.WithdrawEvent:
		return t.withdraw(tx, now, event)
	case *blockchain.EmergencyWithdrawEvent:
		return t.emergencyWithdraw(tx, now, event)
	case *blockchain.SubscriptionEvent:
		return t.subscription(tx, now, event)
	case *blockchain.UnsubscriptionEvent:
		return t.unsubscription(tx, now, event)
	case *blockchain.RewardClaimedEvent:
		return t.rewardClaimed(tx, now, event)
	default:
		return nil, errors.Wrapf(ErrUnknownEvent, "%T", event)
	}
}
