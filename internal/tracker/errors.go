package tracker

import (
	"indexer/internal/fixedpoint"
	"indexer/internal/rewards"
	"indexer/internal/storage"

	"github.com/pkg/errors"
)

var (
	// ErrMissingEntity means an event references a record that was never created,
	// which points at an out-of-order feed or an upstream bug.
	ErrMissingEntity = errors.New("missing entity")
	// ErrInvariant means applying the event would break a model invariant.
	ErrInvariant = errors.New("invariant violation")
	// ErrOutOfOrder means the event is timestamped before an already applied one.
	ErrOutOfOrder   = errors.New("out of order event")
	ErrUnknownEvent = errors.New("unknown event")
)

// IsRejection reports whether err rejects the event itself, so replaying it cannot succeed.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrMissingEntity,
		ErrInvariant,
		ErrOutOfOrder,
		ErrUnknownEvent,
		rewards.ErrCheckpointAhead,
		rewards.ErrZeroDuration,
		fixedpoint.ErrOverflow,
		fixedpoint.ErrDivisionByZero,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func missingEntity(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return errors.Wrap(ErrMissingEntity, err.Error())
	}
	return err
}

func invariant(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvariant, format, args...)
}
