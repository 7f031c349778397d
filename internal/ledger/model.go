package ledger

import "time"

// Account é o saldo de tokens de um usuário. balance_tokens nunca fica
// negativo; lifetime_earned só cresce.
type Account struct {
	UserID         string
	BalanceTokens  int64
	LifetimeEarned int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Entry é uma linha imutável do histórico. A soma das entries de um usuário
// tem que bater com o saldo da conta (invariante de reconciliação).
type Entry struct {
	ID           string
	UserID       string
	AmountTokens int64 // positivo = crédito, negativo = débito
	Reason       string
	CreatedAt    time.Time
}
