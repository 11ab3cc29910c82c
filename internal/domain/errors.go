package domain

import "errors"

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidLeverage     = errors.New("invalid leverage")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrInvalidDirection    = errors.New("invalid direction")
	ErrInvalidCondition    = errors.New("invalid alert condition")
	ErrInvalidToken        = errors.New("invalid token")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrPositionNotFound    = errors.New("position not found")
	ErrAlertNotFound       = errors.New("alert not found")
	ErrFaucetCooldown      = errors.New("faucet claim on cooldown")
	ErrUnknownPair         = errors.New("unknown trading pair")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrMarketNotLoaded     = errors.New("market not loaded")
)
