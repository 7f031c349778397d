package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/radieske/f1-wager-engine/internal/ledger"
	"github.com/radieske/f1-wager-engine/internal/settlement"
	"github.com/radieske/f1-wager-engine/internal/wager"
)

// Postgres implementa o acesso a dados do settlement: leitura das apostas
// pendentes, aplicação dos desfechos em lote e o registro de auditoria.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// SettledRaceIDs retorna as corridas que já têm registro de settlement.
// É o cache que o engine carrega no arranque.
func (p *Postgres) SettledRaceIDs(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT race_id FROM settlement_history`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// PendingWagers retorna as apostas pendentes de um mercado para a corrida.
func (p *Postgres) PendingWagers(ctx context.Context, raceID string, kind wager.Kind) ([]wager.Wager, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, race_name, stake_total,
		       driver_a_number, driver_a_rank, driver_b_number, driver_b_rank,
		       predicted_winner, client_odds
		FROM wagers
		WHERE race_id=$1 AND kind=$2 AND status='pending'
		ORDER BY created_at`, raceID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wager.Wager
	for rows.Next() {
		w := wager.Wager{RaceID: raceID, Kind: kind, Status: wager.StatusPending}
		if err := rows.Scan(&w.ID, &w.UserID, &w.RaceName, &w.StakeTotal,
			&w.DriverA.Number, &w.DriverA.Rank, &w.DriverB.Number, &w.DriverB.Rank,
			&w.PredictedWinner, &w.ClientOdds); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if kind == wager.KindParlay {
		for i := range out {
			legs, err := p.legs(ctx, out[i].ID)
			if err != nil {
				return nil, err
			}
			out[i].Legs = legs
		}
	}
	return out, nil
}

func (p *Postgres) legs(ctx context.Context, wagerID string) ([]wager.Leg, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT position, driver_number, rank_at_bet, stake, client_odds
		FROM wager_legs WHERE wager_id=$1 ORDER BY position`, wagerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wager.Leg
	for rows.Next() {
		var l wager.Leg
		if err := rows.Scan(&l.Position, &l.DriverNumber, &l.RankAtBet, &l.Stake, &l.ClientOdds); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ApplyBatch aplica um lote de desfechos numa única transação: atualização de
// status, flags das pernas e crédito/reembolso pelo ledger. Falha em qualquer
// item desfaz o lote inteiro, então repetir é sempre seguro. Aposta que saiu
// do status pending no meio do caminho (cancelada, ou liquidada por um gatilho
// manual concorrente) é pulada sem crédito e fica fora do retorno: quem conta
// liquidação conta só o que este lote efetivou.
func (p *Postgres) ApplyBatch(ctx context.Context, batch []settlement.Resolution) ([]settlement.Resolution, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	applied := make([]settlement.Resolution, 0, len(batch))
	for _, r := range batch {
		res, err := tx.ExecContext(ctx, `
			UPDATE wagers
			SET status=$1, payout=$2, void_reason=$3,
			    odds=CASE WHEN $4 > 0 THEN $4 ELSE odds END,
			    settled_at=NOW()
			WHERE id=$5 AND status='pending'`,
			r.Status, r.Payout, r.VoidReason, r.ServerOdds, r.WagerID)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}

		for _, leg := range r.Legs {
			if _, err := tx.ExecContext(ctx, `
				UPDATE wager_legs SET won=$1, odds=$2
				WHERE wager_id=$3 AND position=$4`,
				leg.Won, leg.ServerOdds, r.WagerID, leg.Position); err != nil {
				return nil, err
			}
		}

		switch {
		case r.Status == wager.StatusWon:
			reason := fmt.Sprintf("Head-to-head win (%s)", r.RaceName)
			if r.Kind == wager.KindParlay {
				reason = fmt.Sprintf("Parlay win (%s)", r.RaceName)
			}
			if err := ledger.CreditTx(ctx, tx, r.UserID, r.Payout, reason); err != nil {
				return nil, err
			}
		case r.Status == wager.StatusVoid:
			reason := fmt.Sprintf("Wager void (%s): %s", r.RaceName, r.VoidReason)
			if err := ledger.RefundTx(ctx, tx, r.UserID, r.Refund, reason); err != nil {
				return nil, err
			}
		}

		applied = append(applied, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return applied, nil
}

// CountPending conta as apostas ainda pendentes da corrida, de qualquer mercado.
func (p *Postgres) CountPending(ctx context.Context, raceID string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM wagers WHERE race_id=$1 AND status='pending'`, raceID).Scan(&n)
	return n, err
}

// SaveRecord grava o registro de auditoria da corrida. Idempotente: corrida
// já registrada não é sobrescrita.
func (p *Postgres) SaveRecord(ctx context.Context, rec settlement.Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO settlement_history (
			race_id, race_name, season, round,
			h2h_total, h2h_won, h2h_lost, h2h_void,
			parlay_total, parlay_won, parlay_lost, parlay_void,
			completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (race_id) DO NOTHING`,
		rec.RaceID, rec.RaceName, rec.Season, rec.Round,
		rec.H2H.Total, rec.H2H.Won, rec.H2H.Lost, rec.H2H.Void,
		rec.Parlay.Total, rec.Parlay.Won, rec.Parlay.Lost, rec.Parlay.Void,
		rec.CompletedAt)
	return err
}
