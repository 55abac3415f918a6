package types

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

func (r *ProposeActionRequest) Validate() error {
	if r.Target == (common.Address{}) {
		return errors.New("{Target} cannot be a zero address")
	}

	if r.Value != nil && r.Value.Sign() < 0 {
		return errors.New("{Value} cannot be a negative number")
	}

	if r.CreatedAt.IsZero() {
		return errors.New("{CreatedAt} is not set")
	}

	return nil
}

func (r *ConfirmActionRequest) Validate() error {
	if r.CreatedAt.IsZero() {
		return errors.New("{CreatedAt} is not set")
	}

	return nil
}

func (r *RevokeActionRequest) Validate() error {
	if r.CreatedAt.IsZero() {
		return errors.New("{CreatedAt} is not set")
	}

	return nil
}

func (r *NotifyDepositRequest) Validate() error {
	if r.From == (common.Address{}) {
		return errors.New("{From} cannot be a zero address")
	}

	if r.Value == nil {
		return errors.New("{Value} is not set")
	}

	if r.Value.Sign() < 0 {
		return errors.New("{Value} cannot be a negative number")
	}

	if r.CreatedAt.IsZero() {
		return errors.New("{CreatedAt} is not set")
	}

	return nil
}
