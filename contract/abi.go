// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
)

var ErrUnknownABIEntry = errors.New("unknown abi entry")

// ExtendedABI adds precompile calling conventions to a parsed ABI: calldata
// arrives with its selector split off and results are returned without one.
type ExtendedABI struct {
	abi.ABI
}

// ParseABI parses an embedded ABI definition. It panics on malformed JSON
// and is meant for package-level variables.
func ParseABI(rawABI string) ExtendedABI {
	parsed, err := abi.JSON(strings.NewReader(rawABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return ExtendedABI{ABI: parsed}
}

func (e ExtendedABI) method(name string) (abi.Method, error) {
	method, ok := e.Methods[name]
	if !ok {
		return abi.Method{}, fmt.Errorf("%w: method %s", ErrUnknownABIEntry, name)
	}
	return method, nil
}

// MethodBySelector returns the method a 4 byte selector dispatches to.
func (e ExtendedABI) MethodBySelector(selector []byte) (*abi.Method, error) {
	return e.MethodById(selector)
}

// PackOutput encodes the return values of [name].
func (e ExtendedABI) PackOutput(name string, args ...interface{}) ([]byte, error) {
	method, err := e.method(name)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(args...)
}

// UnpackInput decodes the arguments of [name] from calldata without its
// selector. In strict mode trailing bytes that do not fill a word are
// rejected.
func (e ExtendedABI) UnpackInput(name string, data []byte, strict bool) ([]interface{}, error) {
	method, err := e.method(name)
	if err != nil {
		return nil, err
	}
	if strict && len(data)%32 != 0 {
		return nil, fmt.Errorf("abi: improperly formatted input of %d bytes", len(data))
	}
	return method.Inputs.Unpack(data)
}

// PackEvent encodes event [name] as log topics and data. [args] follow the
// event's declared input order, indexed and non-indexed mixed.
func (e ExtendedABI) PackEvent(name string, args ...interface{}) ([]common.Hash, []byte, error) {
	event, ok := e.Events[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: event %s", ErrUnknownABIEntry, name)
	}
	if len(args) != len(event.Inputs) {
		return nil, nil, fmt.Errorf("event %s takes %d inputs, got %d", name, len(event.Inputs), len(args))
	}

	var (
		queries  [][]interface{}
		values   []interface{}
		dataArgs abi.Arguments
	)
	for i, input := range event.Inputs {
		if input.Indexed {
			queries = append(queries, []interface{}{args[i]})
			continue
		}
		dataArgs = append(dataArgs, input)
		values = append(values, args[i])
	}
	data, err := dataArgs.Pack(values...)
	if err != nil {
		return nil, nil, err
	}
	indexed, err := abi.MakeTopics(queries...)
	if err != nil {
		return nil, nil, err
	}

	topics := make([]common.Hash, 0, len(indexed)+1)
	if !event.Anonymous {
		topics = append(topics, event.ID)
	}
	for _, t := range indexed {
		topics = append(topics, t[0])
	}
	return topics, data, nil
}
