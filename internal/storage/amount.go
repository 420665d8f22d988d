package storage

import (
	"database/sql/driver"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Amount is a 256-bit unsigned integer persisted as base-10 text.
type Amount uint256.Int

func NewAmount(value uint64) Amount {
	return Amount(*uint256.NewInt(value))
}

func AmountFrom(value *uint256.Int) Amount {
	if value == nil {
		return Amount{}
	}
	return Amount(*value)
}

// Int exposes the underlying integer; writes through it update the amount in place.
func (a *Amount) Int() *uint256.Int {
	return (*uint256.Int)(a)
}

// Clone returns a detached copy of the amount.
func (a *Amount) Clone() *uint256.Int {
	return new(uint256.Int).Set(a.Int())
}

func (a *Amount) Set(value *uint256.Int) {
	a.Int().Set(value)
}

func (a Amount) String() string {
	value := uint256.Int(a)
	return value.Dec()
}

func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Amount) Scan(src interface{}) error {
	switch value := src.(type) {
	case nil:
		a.Int().Clear()
		return nil
	case string:
		return a.parse(value)
	case []byte:
		return a.parse(string(value))
	case int64:
		if value < 0 {
			return errors.Errorf("storage: negative amount %d", value)
		}
		a.Int().SetUint64(uint64(value))
		return nil
	default:
		return errors.Errorf("storage: cannot scan %T into amount", src)
	}
}

func (a *Amount) parse(text string) error {
	if text == "" {
		a.Int().Clear()
		return nil
	}

	if err := a.Int().SetFromDecimal(text); err != nil {
		return errors.Wrapf(err, "storage: invalid amount %q", text)
	}
	return nil
}
