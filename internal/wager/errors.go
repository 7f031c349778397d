package wager

import "errors"

// Taxonomia de erros da API de apostas. Operações de usuário falham rápido e
// não deixam estado parcial: quem recebe um destes pode assumir que nada foi
// debitado nem persistido.
var (
	ErrValidation          = errors.New("invalid wager request")
	ErrBettingClosed       = errors.New("betting closed for this race")
	ErrDuplicateWager      = errors.New("parlay wager already exists for this race")
	ErrNotFound            = errors.New("wager not found")
	ErrUnauthorized        = errors.New("wager belongs to another user")
	ErrAlreadySettled      = errors.New("wager already settled")
	ErrCancelWindowExpired = errors.New("cancel window expired")
)
