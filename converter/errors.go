// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package converter

import (
	"errors"
	"fmt"

	"github.com/luxfi/treasury/amm"
	"github.com/luxfi/treasury/basket"
	"github.com/luxfi/treasury/keeper"
	"github.com/luxfi/treasury/token"
)

// Configuration errors
var (
	ErrTargetAmountZero      = errors.New("target amount out is zero")
	ErrRouteEndpointMismatch = errors.New("route endpoint mismatch")
	ErrNonTargetEnd          = fmt.Errorf("%w: canonical venue path must end at the target token", ErrRouteEndpointMismatch)
	ErrNonBaseEnd            = fmt.Errorf("%w: venue path must end at the base token", ErrRouteEndpointMismatch)
	ErrInvalidPath           = errors.New("path needs at least two tokens")
	ErrUnknownVenue          = errors.New("unknown venue")
	ErrNotAuthorized         = errors.New("caller is not the owner")
	ErrAlreadyInitialized    = errors.New("already initialized")
	ErrZeroAddress           = errors.New("zero address")
	ErrInvalidBeneficiary    = errors.New("beneficiary cannot be the converter")
)

// Authorization errors
var (
	ErrNotEOA                 = errors.New("caller is not the transaction origin")
	ErrInvalidPokerKey        = errors.New("invalid poker key")
	ErrSlasherIsReporter      = errors.New("slasher is the highest deposit holder")
	ErrPermissionlessDisabled = errors.New("permissionless conversion disabled")
)

// Liquidity and balance errors
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNativeBalanceZero   = fmt.Errorf("%w: native balance is zero", ErrInsufficientBalance)
	ErrTransferFailed      = errors.New("transfer failed")
	ErrConversionInvariant = errors.New("beneficiary did not receive exactly the target amount")
)

// State errors
var (
	ErrRotationNotSynced = errors.New("basket rotation not synced")
	ErrRotationStale     = errors.New("rotation member no longer bound to the basket")
	ErrNotConfigured     = errors.New("converter not configured")
)

// collaboratorError is a failure reported by, or on behalf of, a
// collaborator. It matches both its class and the collaborator's own error.
type collaboratorError struct {
	class error
	op    string
	cause error
}

func (e *collaboratorError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.class, e.op, e.cause)
}

func (e *collaboratorError) Unwrap() []error {
	return []error{e.class, e.cause}
}

func transferFailed(op string, err error) error {
	if err == nil {
		return nil
	}
	return &collaboratorError{class: ErrTransferFailed, op: op, cause: err}
}

// shortfall reports a balance below the required input together with the
// error the collaborator would have raised for it.
func shortfall(op string, cause error) error {
	return &collaboratorError{class: ErrInsufficientBalance, op: op, cause: cause}
}

var reasons = []struct {
	err    error
	reason string
}{
	{ErrTargetAmountZero, "CVP_AMOUNT_OUT_0"},
	{ErrNonTargetEnd, "NON_CVP_END_ON_UNISWAP_PATH"},
	{ErrNonBaseEnd, "NON_WETH_END_ON_NON_UNISWAP_PATH"},
	{ErrInvalidPath, "INVALID_PATH"},
	{ErrUnknownVenue, "UNKNOWN_ROUTER"},
	{ErrNotAuthorized, "Ownable: caller is not the owner"},
	{ErrAlreadyInitialized, "Contract instance has already been initialized"},
	{ErrZeroAddress, "ZERO_ADDRESS"},
	{ErrInvalidBeneficiary, "INVALID_BENEFICIARY"},
	{ErrNotEOA, "NOT_EOA"},
	{ErrInvalidPokerKey, "INVALID_POKER_KEY"},
	{ErrSlasherIsReporter, "IS_HDH"},
	{ErrPermissionlessDisabled, "PERMISSIONLESS_DISABLED"},
	{ErrNativeBalanceZero, "ETH_BALANCE_IS_0"},
	{ErrInsufficientBalance, "INSUFFICIENT_BALANCE"},
	{ErrConversionInvariant, "CONVERSION_INVARIANT"},
	{ErrRotationNotSynced, "ROTATION_NOT_SYNCED"},
	{ErrRotationStale, "STALE_ROTATION_MEMBER"},
	{ErrNotConfigured, "NOT_CONFIGURED"},
}

// collaboratorReasons are checked outermost first so a router failure
// caused by a token failure reports the router's reason.
var collaboratorReasons = []error{
	amm.ErrTransferFromFailed,
	amm.ErrTransferFailed,
	amm.ErrExcessiveInputAmount,
	amm.ErrRouterOutputTooLow,
	amm.ErrInsufficientLiquidity,
	amm.ErrInsufficientInputAmount,
	amm.ErrInsufficientOutputAmount,
	amm.ErrPairNotFound,
	amm.ErrInvalidPath,
	amm.ErrMathOverflow,
	basket.ErrPullUnderlying,
	basket.ErrInsufficientBal,
	basket.ErrNotBound,
	basket.ErrMaxOutRatio,
	basket.ErrMathApprox,
	basket.ErrLimitIn,
	basket.ErrPoolNotFound,
	basket.ErrSubUnderflow,
	basket.ErrBPowBaseTooLow,
	token.ErrTransferExceedsBalance,
	token.ErrTransferExceedsAllowance,
	token.ErrInsufficientNative,
	keeper.ErrUnknownUser,
	keeper.ErrUnknownClient,
	keeper.ErrInsufficientDeposit,
	keeper.ErrInsufficientCredit,
	keeper.ErrAlreadySettled,
}

// ReasonOf returns the stable revert reason of [err]. Collaborator
// failures surface the collaborator's own reason verbatim.
func ReasonOf(err error) string {
	if err == nil {
		return ""
	}
	var ce *collaboratorError
	if errors.As(err, &ce) {
		return collaboratorReason(ce.cause)
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return collaboratorReason(err)
}

func collaboratorReason(err error) string {
	for _, known := range collaboratorReasons {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}
