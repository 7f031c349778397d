package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/radieske/f1-wager-engine/internal/ledger"
	"github.com/radieske/f1-wager-engine/internal/wager"
)

// Postgres implementa o store de apostas. Toda criação e cancelamento roda
// numa única transação junto com a mutação de saldo: aposta sem débito ou
// débito sem aposta nunca ficam visíveis.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// uniqueViolation é o código do Postgres para conflito em índice único;
// no nosso caso, o índice parcial de um parlay pendente por usuário/corrida.
const uniqueViolation = "23505"

// CreateParlay insere a aposta com as pernas e debita o stake total no mesmo
// passo atômico. Conflito no índice parcial vira ErrDuplicateWager; saldo
// insuficiente vira ledger.ErrInsufficientBalance; nos dois casos nada persiste.
func (p *Postgres) CreateParlay(ctx context.Context, w *wager.Wager) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := p.insertWager(ctx, tx, w); err != nil {
		return err
	}

	for _, leg := range w.Legs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO wager_legs (wager_id, position, driver_number, driver_name, rank_at_bet, stake, odds, client_odds)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			w.ID, leg.Position, leg.DriverNumber, leg.DriverName, leg.RankAtBet, leg.Stake, leg.Odds, leg.ClientOdds); err != nil {
			return err
		}
	}

	reason := fmt.Sprintf("Parlay wager placed (%s)", w.RaceName)
	if err := ledger.DebitTx(ctx, tx, w.UserID, w.StakeTotal, reason); err != nil {
		return err
	}

	return tx.Commit()
}

// CreateHeadToHead insere o confronto direto e debita o stake, atômico.
func (p *Postgres) CreateHeadToHead(ctx context.Context, w *wager.Wager) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := p.insertWager(ctx, tx, w); err != nil {
		return err
	}

	reason := fmt.Sprintf("Head-to-head wager placed (%s)", w.RaceName)
	if err := ledger.DebitTx(ctx, tx, w.UserID, w.StakeTotal, reason); err != nil {
		return err
	}

	return tx.Commit()
}

func (p *Postgres) insertWager(ctx context.Context, tx *sql.Tx, w *wager.Wager) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.CreatedAt = time.Now().UTC()
	w.Status = wager.StatusPending

	_, err := tx.ExecContext(ctx, `
		INSERT INTO wagers (
			id, user_id, race_id, race_name, kind, stake_total, status,
			driver_a_number, driver_a_name, driver_a_team, driver_a_rank,
			driver_b_number, driver_b_name, driver_b_team, driver_b_rank,
			matchup_id, predicted_winner, odds, client_odds, potential_payout,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		w.ID, w.UserID, w.RaceID, w.RaceName, w.Kind, w.StakeTotal, w.Status,
		w.DriverA.Number, w.DriverA.Name, w.DriverA.Team, w.DriverA.Rank,
		w.DriverB.Number, w.DriverB.Name, w.DriverB.Team, w.DriverB.Rank,
		w.MatchupID, w.PredictedWinner, w.Odds, w.ClientOdds, w.PotentialPayout,
		w.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return wager.ErrDuplicateWager
		}
		return err
	}
	return nil
}

// Cancel remove uma aposta pendente e devolve o stake, tudo na mesma
// transação. As condições (dono, status, janela) são reavaliadas com a linha
// travada, então cancelamento concorrente com settlement nunca paga dobrado.
func (p *Postgres) Cancel(ctx context.Context, wagerID, userID string, now time.Time) (wager.Wager, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return wager.Wager{}, err
	}
	defer tx.Rollback()

	w, err := p.getTx(ctx, tx, wagerID, true)
	if err != nil {
		return wager.Wager{}, err
	}

	if w.UserID != userID {
		return wager.Wager{}, wager.ErrUnauthorized
	}
	if w.Status != wager.StatusPending {
		return wager.Wager{}, wager.ErrAlreadySettled
	}
	if now.Sub(w.CreatedAt) >= wager.CancelWindow {
		return wager.Wager{}, wager.ErrCancelWindowExpired
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM wagers WHERE id=$1`, wagerID); err != nil {
		return wager.Wager{}, err
	}

	reason := fmt.Sprintf("Wager cancelled (%s)", w.RaceName)
	if err := ledger.RefundTx(ctx, tx, userID, w.StakeTotal, reason); err != nil {
		return wager.Wager{}, err
	}

	if err := tx.Commit(); err != nil {
		return wager.Wager{}, err
	}
	return w, nil
}

// Get retorna uma aposta com as pernas.
func (p *Postgres) Get(ctx context.Context, wagerID string) (wager.Wager, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return wager.Wager{}, err
	}
	defer tx.Rollback()

	w, err := p.getTx(ctx, tx, wagerID, false)
	if err != nil {
		return wager.Wager{}, err
	}
	return w, tx.Commit()
}

func (p *Postgres) getTx(ctx context.Context, tx *sql.Tx, wagerID string, forUpdate bool) (wager.Wager, error) {
	q := selectWager + ` WHERE id=$1`
	if forUpdate {
		q += ` FOR UPDATE`
	}

	w, err := scanWager(tx.QueryRowContext(ctx, q, wagerID))
	if err == sql.ErrNoRows {
		return wager.Wager{}, wager.ErrNotFound
	}
	if err != nil {
		return wager.Wager{}, err
	}

	legs, err := p.legsTx(ctx, tx, wagerID)
	if err != nil {
		return wager.Wager{}, err
	}
	w.Legs = legs
	return w, nil
}

// ListByUser retorna as apostas do usuário, opcionalmente filtradas por corrida.
func (p *Postgres) ListByUser(ctx context.Context, userID, raceID string) ([]wager.Wager, error) {
	q := selectWager + ` WHERE user_id=$1`
	args := []any{userID}
	if raceID != "" {
		q += ` AND race_id=$2`
		args = append(args, raceID)
	}
	q += ` ORDER BY created_at DESC`

	return p.list(ctx, q, args...)
}

func (p *Postgres) list(ctx context.Context, q string, args ...any) ([]wager.Wager, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wager.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// N+1 aceitável: listagem por usuário é pequena (um punhado de apostas).
	for i := range out {
		if out[i].Kind != wager.KindParlay {
			continue
		}
		legs, err := p.legs(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Legs = legs
	}
	return out, nil
}

const selectWager = `
	SELECT id, user_id, race_id, race_name, kind, stake_total, status, payout,
	       driver_a_number, driver_a_name, driver_a_team, driver_a_rank,
	       driver_b_number, driver_b_name, driver_b_team, driver_b_rank,
	       matchup_id, predicted_winner, odds, client_odds, potential_payout,
	       void_reason, created_at, settled_at
	FROM wagers`

type rowScanner interface{ Scan(dest ...any) error }

func scanWager(r rowScanner) (wager.Wager, error) {
	var w wager.Wager
	var settledAt sql.NullTime
	err := r.Scan(
		&w.ID, &w.UserID, &w.RaceID, &w.RaceName, &w.Kind, &w.StakeTotal, &w.Status, &w.Payout,
		&w.DriverA.Number, &w.DriverA.Name, &w.DriverA.Team, &w.DriverA.Rank,
		&w.DriverB.Number, &w.DriverB.Name, &w.DriverB.Team, &w.DriverB.Rank,
		&w.MatchupID, &w.PredictedWinner, &w.Odds, &w.ClientOdds, &w.PotentialPayout,
		&w.VoidReason, &w.CreatedAt, &settledAt)
	if err != nil {
		return wager.Wager{}, err
	}
	if settledAt.Valid {
		t := settledAt.Time
		w.SettledAt = &t
	}
	return w, nil
}

func (p *Postgres) legs(ctx context.Context, wagerID string) ([]wager.Leg, error) {
	rows, err := p.db.QueryContext(ctx, selectLegs, wagerID)
	if err != nil {
		return nil, err
	}
	return collectLegs(rows)
}

func (p *Postgres) legsTx(ctx context.Context, tx *sql.Tx, wagerID string) ([]wager.Leg, error) {
	rows, err := tx.QueryContext(ctx, selectLegs, wagerID)
	if err != nil {
		return nil, err
	}
	return collectLegs(rows)
}

const selectLegs = `
	SELECT position, driver_number, driver_name, rank_at_bet, stake, odds, client_odds, won
	FROM wager_legs WHERE wager_id=$1 ORDER BY position`

func collectLegs(rows *sql.Rows) ([]wager.Leg, error) {
	defer rows.Close()

	var out []wager.Leg
	for rows.Next() {
		var l wager.Leg
		if err := rows.Scan(&l.Position, &l.DriverNumber, &l.DriverName, &l.RankAtBet, &l.Stake, &l.Odds, &l.ClientOdds, &l.Won); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
