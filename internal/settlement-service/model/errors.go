package model

import "errors"

// Erros de domínio compartilhados por ledger, store de apostas, orquestrador e API
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadySettled    = errors.New("already settled")
	ErrUnknownMarket     = errors.New("unknown market")
	ErrNotFound          = errors.New("not found")

	ErrInvalidArgument = errors.New("invalid argument")
	ErrMatchClosed     = errors.New("match closed for betting")
	ErrLeagueFull      = errors.New("league is full")
	ErrAlreadyMember   = errors.New("already a member of this league")
	ErrUsernameTaken   = errors.New("username taken")
)
