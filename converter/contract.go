// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package converter

import (
	_ "embed"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/treasury/contract"
)

var _ contract.StatefulPrecompiledContract = (*Contract)(nil)

// Gas costs
const (
	GasView      uint64 = 2_500
	GasQuote     uint64 = 25_000
	GasConfigure uint64 = 30_000
	GasSync      uint64 = 60_000
	GasSwap      uint64 = 250_000
	GasPoke      uint64 = 300_000
)

//go:embed contract.abi
var rawABI string

var converterABI = contract.ParseABI(rawABI)

var (
	errorSelector = contract.CalculateFunctionSelector("Error(string)")
	errorArgs     = func() abi.Arguments {
		stringTy, _ := abi.NewType("string", "", nil)
		return abi.Arguments{{Type: stringTy}}
	}()
)

// Contract is the precompile surface of a Converter.
type Contract struct {
	// mu serialises invocations
	mu        sync.Mutex
	converter *Converter
}

// NewContract wraps [c]. A nil converter answers every call with
// ErrNotConfigured until Configure installs one.
func NewContract(c *Converter) *Contract {
	return &Contract{converter: c}
}

// Converter returns the installed converter.
func (p *Contract) Converter() *Converter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.converter
}

func (p *Contract) install(c *Converter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.converter = c
}

// RevertData encodes [err] as Error(string) with its stable reason.
func RevertData(err error) []byte {
	packed, packErr := errorArgs.Pack(ReasonOf(err))
	if packErr != nil {
		return nil
	}
	return append(append([]byte{}, errorSelector...), packed...)
}

// Run executes the precompile
func (p *Contract) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) (ret []byte, remainingGas uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.converter == nil {
		return RevertData(ErrNotConfigured), suppliedGas, ErrNotConfigured
	}
	// Plain value transfers are accumulated for a later native conversion.
	if len(input) == 0 {
		return nil, suppliedGas, nil
	}
	selector, args, err := contract.SplitInput(input)
	if err != nil {
		return nil, suppliedGas, err
	}
	method, err := converterABI.MethodBySelector(selector)
	if err != nil {
		return nil, suppliedGas, fmt.Errorf("unknown method selector: %x", selector)
	}

	gas, view := methodGas(method.Name)
	if !view && readOnly {
		return nil, suppliedGas, contract.ErrWriteProtection
	}
	remainingGas, err = contract.DeductGas(suppliedGas, gas)
	if err != nil {
		return nil, 0, err
	}
	values, err := converterABI.UnpackInput(method.Name, args, false)
	if err != nil {
		return nil, remainingGas, err
	}

	ret, err = p.dispatch(accessibleState, caller, method.Name, values)
	if err != nil {
		return RevertData(err), remainingGas, err
	}
	return ret, remainingGas, nil
}

// methodGas returns the cost of [name] and whether it is read only.
func methodGas(name string) (uint64, bool) {
	switch name {
	case "owner", "permissionless", "targetAmountOut", "getRouter", "getPath",
		"customStrategies", "getRotationTokens", "getRotationNextIndex", "getRotationNextTokenToExit":
		return GasView, true
	case "estimateSwapAmountIn", "estimateAmountOut",
		"estimateBaseStrategyIn", "estimateBaseStrategyOut",
		"estimateRouteStrategyIn", "estimateRouteStrategyOut",
		"estimateDirectExitIn", "estimateDirectExitOut",
		"estimateRotatingExitIn", "estimateRotatingExitOut",
		"basketExitAmountIn", "basketExitAmountOut":
		return GasQuote, true
	case "syncRotation":
		return GasSync, false
	case "swap":
		return GasSwap, false
	case "swapFromReporter", "swapFromSlasher":
		return GasPoke, false
	default:
		return GasConfigure, false
	}
}

func (p *Contract) dispatch(
	state contract.AccessibleState,
	caller common.Address,
	name string,
	args []interface{},
) ([]byte, error) {
	c := p.converter
	db := state.GetStateDB()

	switch name {
	// Configuration
	case "setTargetAmountOut":
		return nil, c.SetTargetAmountOut(db, caller, amountArg(args[0]))
	case "setCustomPath":
		return nil, c.SetRouteOverride(db, caller, args[0].(common.Address), args[1].(common.Address), args[2].([]common.Address))
	case "setCustomStrategy":
		return nil, c.SetBasketStrategy(db, caller, args[0].(common.Address), amountArg(args[1]))
	case "transferOwnership":
		return nil, c.TransferOwnership(db, caller, args[0].(common.Address))
	case "setPermissionless":
		return nil, c.SetPermissionless(db, caller, args[0].(bool))

	// Conversions
	case "swap":
		_, err := c.Swap(db, caller, args[0].(common.Address))
		return nil, err
	case "swapFromReporter", "swapFromSlasher":
		id := amountArg(args[0])
		if !id.IsUint64() {
			return nil, ErrInvalidPokerKey
		}
		run := c.SwapFromReporter
		if name == "swapFromSlasher" {
			run = c.SwapFromSlasher
		}
		_, err := run(db, state.GetTxContext(), caller, id.Uint64(), args[1].(common.Address), args[2].([]byte))
		return nil, err
	case "syncRotation":
		r, err := c.SyncRotation(db, args[0].(common.Address))
		if err != nil {
			return nil, err
		}
		return converterABI.PackOutput(name, new(big.Int).SetInt64(int64(len(r.Members))))

	// Estimates
	case "estimateSwapAmountIn":
		return packAmount(name)(c.EstimateAmountIn(db, args[0].(common.Address)))
	case "estimateAmountOut":
		return packAmount(name)(c.EstimateAmountOut(db, args[0].(common.Address)))
	case "estimateBaseStrategyIn":
		return packAmount(name)(c.BaseStrategyIn(db))
	case "estimateBaseStrategyOut":
		return packAmount(name)(c.BaseStrategyOut(db, amountArg(args[0])))
	case "estimateRouteStrategyIn":
		return packAmount(name)(c.RouteStrategyIn(db, args[0].(common.Address)))
	case "estimateRouteStrategyOut":
		return packAmount(name)(c.RouteStrategyOut(db, args[0].(common.Address), amountArg(args[1])))
	case "estimateDirectExitIn":
		return packAmount(name)(c.DirectExitIn(db, args[0].(common.Address)))
	case "estimateDirectExitOut":
		return packAmount(name)(c.DirectExitOut(db, args[0].(common.Address), amountArg(args[1])))
	case "estimateRotatingExitIn":
		return packAmount(name)(c.RotatingExitIn(db, args[0].(common.Address)))
	case "estimateRotatingExitOut":
		return packAmount(name)(c.RotatingExitOut(db, args[0].(common.Address), amountArg(args[1])))
	case "basketExitAmountIn":
		return packAmount(name)(c.BasketExitAmountIn(db, args[0].(common.Address), args[1].(common.Address), amountArg(args[2])))
	case "basketExitAmountOut":
		return packAmount(name)(c.BasketExitAmountOut(db, args[0].(common.Address), args[1].(common.Address), amountArg(args[2])))

	// Views
	case "owner":
		return converterABI.PackOutput(name, c.Owner(db))
	case "permissionless":
		return converterABI.PackOutput(name, c.Permissionless(db))
	case "targetAmountOut":
		return converterABI.PackOutput(name, c.TargetAmountOut(db).ToBig())
	case "getRouter":
		return converterABI.PackOutput(name, c.Venue(db, args[0].(common.Address)))
	case "getPath":
		_, path := c.Route(db, args[0].(common.Address))
		return converterABI.PackOutput(name, path)
	case "customStrategies":
		return converterABI.PackOutput(name, c.BasketStrategy(db, args[0].(common.Address)).ToBig())
	case "getRotationTokens":
		return converterABI.PackOutput(name, c.Rotation(db, args[0].(common.Address)).Members)
	case "getRotationNextIndex":
		r := c.Rotation(db, args[0].(common.Address))
		return converterABI.PackOutput(name, new(big.Int).SetUint64(r.NextIndex))
	case "getRotationNextTokenToExit":
		member, err := c.NextExitMember(db, args[0].(common.Address))
		if err != nil {
			return nil, err
		}
		return converterABI.PackOutput(name, member)
	default:
		return nil, fmt.Errorf("unhandled method %s", name)
	}
}

func amountArg(v interface{}) *uint256.Int {
	b, _ := v.(*big.Int)
	if b == nil {
		return new(uint256.Int)
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return u
}

func packAmount(name string) func(*uint256.Int, error) ([]byte, error) {
	return func(v *uint256.Int, err error) ([]byte, error) {
		if err != nil {
			return nil, err
		}
		return converterABI.PackOutput(name, v.ToBig())
	}
}
