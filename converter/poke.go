// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package converter

import (
	"fmt"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/contract"
	"github.com/luxfi/treasury/keeper"
	"github.com/luxfi/treasury/storage"
)

// Role is the keeper role a conversion is triggered under.
type Role uint8

const (
	Reporter Role = iota
	Slasher
)

func (r Role) String() string {
	if r == Slasher {
		return "slasher"
	}
	return "reporter"
}

var pokePrefix = []byte("converter.poke")

// pokeTrigger identifies one keeper poke for settlement: a caller is paid
// at most once per transaction.
func pokeTrigger(txHash common.Hash, caller common.Address) common.Hash {
	return storage.Key(pokePrefix, txHash.Bytes(), caller.Bytes())
}

// CompensationOptions select where and in what asset a keeper is paid.
type CompensationOptions struct {
	To       common.Address
	InNative bool
}

var compensationArgs = func() abi.Arguments {
	addressTy, _ := abi.NewType("address", "", nil)
	boolTy, _ := abi.NewType("bool", "", nil)
	return abi.Arguments{{Name: "to", Type: addressTy}, {Name: "inNative", Type: boolTy}}
}()

// DecodeCompensationOptions decodes ABI encoded (address to, bool inNative).
// Empty data pays [caller] in the target token.
func DecodeCompensationOptions(caller common.Address, data []byte) (CompensationOptions, error) {
	if len(data) == 0 {
		return CompensationOptions{To: caller}, nil
	}
	values, err := compensationArgs.Unpack(data)
	if err != nil {
		return CompensationOptions{}, fmt.Errorf("invalid compensation options: %w", err)
	}
	opts := CompensationOptions{To: values[0].(common.Address), InNative: values[1].(bool)}
	if opts.To == (common.Address{}) {
		opts.To = caller
	}
	return opts, nil
}

// EncodeCompensationOptions is the inverse of DecodeCompensationOptions.
func EncodeCompensationOptions(opts CompensationOptions) ([]byte, error) {
	return compensationArgs.Pack(opts.To, opts.InNative)
}

// SwapFromReporter converts [tok] on behalf of the reporter holding key
// [keyID] and compensates it.
func (c *Converter) SwapFromReporter(
	stateDB contract.StateDB,
	tx contract.TxContext,
	caller common.Address,
	keyID uint64,
	tok common.Address,
	opts []byte,
) (SwapRecord, error) {
	return c.poke(stateDB, tx, Reporter, caller, keyID, tok, opts)
}

// SwapFromSlasher converts [tok] on behalf of a slasher holding key
// [keyID]. The slasher must not be the current reporter.
func (c *Converter) SwapFromSlasher(
	stateDB contract.StateDB,
	tx contract.TxContext,
	caller common.Address,
	keyID uint64,
	tok common.Address,
	opts []byte,
) (SwapRecord, error) {
	return c.poke(stateDB, tx, Slasher, caller, keyID, tok, opts)
}

func (c *Converter) poke(
	stateDB contract.StateDB,
	tx contract.TxContext,
	role Role,
	caller common.Address,
	keyID uint64,
	tok common.Address,
	rawOpts []byte,
) (SwapRecord, error) {
	if tx.Origin() != caller {
		return SwapRecord{}, ErrNotEOA
	}
	if err := c.authorize(stateDB, role, caller, keyID); err != nil {
		return SwapRecord{}, err
	}
	opts, err := DecodeCompensationOptions(caller, rawOpts)
	if err != nil {
		return SwapRecord{}, err
	}

	var rec SwapRecord
	err = withSnapshot(stateDB, func() error {
		var err error
		if rec, err = c.ExecuteConversion(stateDB, caller, tok); err != nil {
			return err
		}
		c.settle(stateDB, tx, role, caller, keyID, opts)
		return nil
	})
	if err != nil {
		return SwapRecord{}, err
	}
	return rec, nil
}

// authorize checks [caller] holds [role] through key [keyID].
func (c *Converter) authorize(stateDB contract.StateDB, role Role, caller common.Address, keyID uint64) error {
	pokerKey, err := c.roles.PokerKey(stateDB, keyID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPokerKey, err)
	}
	hdh, hdhErr := c.roles.HighestDepositHolder(stateDB, c.Address)

	switch role {
	case Reporter:
		if pokerKey != caller {
			return ErrInvalidPokerKey
		}
		if hdhErr != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPokerKey, hdhErr)
		}
		if hdh != keyID {
			return fmt.Errorf("%w: key %d is not the reporter", ErrInvalidPokerKey, keyID)
		}
	case Slasher:
		if hdhErr == nil && hdh == keyID {
			return ErrSlasherIsReporter
		}
		if pokerKey != caller {
			return ErrInvalidPokerKey
		}
		ok, err := c.roles.HasMinimalDeposit(stateDB, c.Address, keyID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPokerKey, err)
		}
		if !ok {
			return fmt.Errorf("%w: key %d is below the minimal deposit", ErrInvalidPokerKey, keyID)
		}
	}
	return nil
}

// settle pays the keeper. A failed payment is reverted on its own and does
// not fail the conversion.
func (c *Converter) settle(
	stateDB contract.StateDB,
	tx contract.TxContext,
	role Role,
	caller common.Address,
	keyID uint64,
	opts CompensationOptions,
) {
	req := keeper.RewardRequest{
		Client:   c.Address,
		UserID:   keyID,
		GasUsed:  GasPoke,
		GasPrice: tx.GasPrice(),
		To:       opts.To,
		InNative: opts.InNative,
		Trigger:  pokeTrigger(stateDB.TxHash(), caller),
	}
	snapshot := stateDB.Snapshot()
	paid, err := c.compensation.Reward(stateDB, req)
	if err != nil {
		stateDB.RevertToSnapshot(snapshot)
		c.log.Warn("keeper compensation failed",
			"role", role,
			"keyID", keyID,
			"reason", ReasonOf(err),
		)
		return
	}
	c.log.Info("compensated keeper", "role", role, "keyID", keyID, "to", opts.To, "native", opts.InNative, "amount", paid)
}
