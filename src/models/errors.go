package models

import "fmt"

var (
	ErrNotFound                  = fmt.Errorf("record not found")
	ErrDuplicateRecord           = fmt.Errorf("duplicate record")
	ErrInsufficientFunds         = fmt.Errorf("insufficient funds")
	ErrInsufficientFreeMargin    = fmt.Errorf("insufficient free margin")
	ErrTradeNotOpen              = fmt.Errorf("trade is not open")
	ErrCopyTradeNotOpen          = fmt.Errorf("copy trade is not open")
	ErrInvalidTransition         = fmt.Errorf("invalid status transition")
	ErrCommissionAlreadyReversed = fmt.Errorf("commission already reversed")
	ErrStaleChallengeAccount     = fmt.Errorf("challenge account was modified concurrently")
	ErrValidation                = fmt.Errorf("validation failed")
	ErrAccountNotActive          = fmt.Errorf("account is not active")
	ErrMasterNotActive           = fmt.Errorf("master is not active")
	ErrNoPriceAvailable          = fmt.Errorf("no price available")
)
