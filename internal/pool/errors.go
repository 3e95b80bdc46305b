package pool

import "errors"

var (
	ErrTokensEqual            = errors.New("pool: tokens must differ")
	ErrTokensUnsorted         = errors.New("pool: token0 must sort before token1")
	ErrInvalidTickSpacing     = errors.New("pool: invalid tick spacing")
	ErrInvalidFee             = errors.New("pool: fee must be below denominator")
	ErrPoolAlreadyInitialized = errors.New("pool: already initialized")
	ErrPoolNotInitialized     = errors.New("pool: not initialized")
	ErrTickNotSpaced          = errors.New("pool: tick not a multiple of spacing")
	ErrInvalidTickBounds      = errors.New("pool: lower bound must be below upper bound")
	ErrLiquidityUnderflow     = errors.New("pool: position liquidity underflow")
	ErrLiquidityOverflow      = errors.New("pool: liquidity exceeds 128 bits")
	ErrDepositOverflow        = errors.New("pool: deposit amount exceeds 128 bits")
	ErrPositionNotFound       = errors.New("pool: position not found")
	ErrZeroLiquidityPosition  = errors.New("pool: extra data requires nonzero liquidity")
	ErrInvalidSqrtRatioLimit  = errors.New("pool: sqrt ratio limit on wrong side of price")
	ErrZeroSwapAmount         = errors.New("pool: swap amount must be positive")
	ErrNotEnoughLiquidity     = errors.New("pool: insufficient liquidity for swap")
)
