// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"errors"

	"github.com/luxfi/crypto"
)

// SelectorLen is the length of a function selector at the head of calldata.
const SelectorLen = 4

var (
	ErrOutOfGas        = errors.New("out of gas")
	ErrWriteProtection = errors.New("write protection")
	ErrInputTooShort   = errors.New("input too short")
)

// CalculateFunctionSelector returns the 4 byte selector of a canonical
// function signature such as "transfer(address,uint256)".
func CalculateFunctionSelector(functionSignature string) []byte {
	hash := crypto.Keccak256([]byte(functionSignature))
	return hash[:SelectorLen]
}

// DeductGas charges [cost] against [suppliedGas].
func DeductGas(suppliedGas uint64, cost uint64) (uint64, error) {
	if suppliedGas < cost {
		return 0, ErrOutOfGas
	}
	return suppliedGas - cost, nil
}

// SplitInput separates the selector from the packed arguments.
func SplitInput(input []byte) ([]byte, []byte, error) {
	if len(input) < SelectorLen {
		return nil, nil, ErrInputTooShort
	}
	return input[:SelectorLen], input[SelectorLen:], nil
}
