package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// Limite do campo reason no histórico (proteção contra payloads gigantes).
const maxReasonLen = 100

func clampReason(reason string) string {
	if len(reason) > maxReasonLen {
		return reason[:maxReasonLen]
	}
	return reason
}

// Postgres implementa as operações de ledger sobre uma única base.
// Cada mutação de saldo acontece num passo atômico junto com a entry de
// histórico: nunca há read-modify-write atravessando transações.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Balance retorna a conta do usuário, criando-a zerada se não existir
// (conta é criada de forma preguiçosa na primeira ação autenticada).
func (p *Postgres) Balance(ctx context.Context, userID string) (Account, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback()

	if err := EnsureAccountTx(ctx, tx, userID); err != nil {
		return Account{}, err
	}

	var acc Account
	err = tx.QueryRowContext(ctx, `
		SELECT user_id, balance_tokens, lifetime_earned, created_at, updated_at
		FROM accounts WHERE user_id=$1`, userID).
		Scan(&acc.UserID, &acc.BalanceTokens, &acc.LifetimeEarned, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return Account{}, err
	}

	if err := tx.Commit(); err != nil {
		return Account{}, err
	}
	return acc, nil
}

// Credit adiciona tokens ganhos (prêmios, recompensas) e registra a entry.
func (p *Postgres) Credit(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	return p.mutate(ctx, func(tx *sql.Tx) error {
		return CreditTx(ctx, tx, userID, amount, reason)
	}, userID)
}

// Debit remove tokens, falhando com ErrInsufficientBalance se o saldo não
// cobre o valor no momento da execução (verificado dentro do mesmo passo
// atômico, nunca num pre-check separado).
func (p *Postgres) Debit(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	return p.mutate(ctx, func(tx *sql.Tx) error {
		return DebitTx(ctx, tx, userID, amount, reason)
	}, userID)
}

// Refund devolve tokens de escrow (cancelamento, aposta void). Não conta
// como ganho: lifetime_earned fica intacto.
func (p *Postgres) Refund(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	return p.mutate(ctx, func(tx *sql.Tx) error {
		return RefundTx(ctx, tx, userID, amount, reason)
	}, userID)
}

func (p *Postgres) mutate(ctx context.Context, op func(tx *sql.Tx) error, userID string) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := op(tx); err != nil {
		return 0, err
	}

	var balance int64
	if err := tx.QueryRowContext(ctx, `SELECT balance_tokens FROM accounts WHERE user_id=$1`, userID).Scan(&balance); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

// History retorna as últimas entries do usuário, mais recentes primeiro.
func (p *Postgres) History(ctx context.Context, userID string, limit int) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, amount_tokens, reason, created_at
		FROM token_ledger WHERE user_id=$1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.AmountTokens, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ========================================
// Primitivas por transação
// Usadas pelo wager repo e pelo settlement repo para compor débito/crédito
// com as escritas de aposta dentro da MESMA transação.
// ========================================

// EnsureAccountTx cria a conta zerada se ainda não existe.
func EnsureAccountTx(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (user_id, balance_tokens, lifetime_earned)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO NOTHING`, userID)
	return err
}

// DebitTx debita com guarda de saldo no próprio UPDATE: duas apostas
// concorrentes disputando o mesmo saldo nunca debitam as duas.
func DebitTx(ctx context.Context, tx *sql.Tx, userID string, amount int64, reason string) error {
	if err := EnsureAccountTx(ctx, tx, userID); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance_tokens = balance_tokens - $1, updated_at = NOW()
		WHERE user_id = $2 AND balance_tokens >= $1`, amount, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientBalance
	}

	return appendEntryTx(ctx, tx, userID, -amount, reason)
}

// CreditTx credita ganhos e acumula em lifetime_earned.
func CreditTx(ctx context.Context, tx *sql.Tx, userID string, amount int64, reason string) error {
	if err := EnsureAccountTx(ctx, tx, userID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance_tokens = balance_tokens + $1,
		    lifetime_earned = lifetime_earned + $1,
		    updated_at = NOW()
		WHERE user_id = $2`, amount, userID); err != nil {
		return err
	}

	return appendEntryTx(ctx, tx, userID, amount, reason)
}

// RefundTx devolve escrow sem mexer em lifetime_earned.
func RefundTx(ctx context.Context, tx *sql.Tx, userID string, amount int64, reason string) error {
	if err := EnsureAccountTx(ctx, tx, userID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance_tokens = balance_tokens + $1, updated_at = NOW()
		WHERE user_id = $2`, amount, userID); err != nil {
		return err
	}

	return appendEntryTx(ctx, tx, userID, amount, reason)
}

func appendEntryTx(ctx context.Context, tx *sql.Tx, userID string, amount int64, reason string) error {
	reason = clampReason(reason)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO token_ledger (id, user_id, amount_tokens, reason, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		uuid.NewString(), userID, amount, reason)
	return err
}
