package race

import (
	"context"
	"database/sql"
)

// Postgres implementa o acesso ao calendário de corridas.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Get retorna uma corrida pelo id.
func (p *Postgres) Get(ctx context.Context, raceID string) (Race, error) {
	var r Race
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, circuit, round, season, start_time
		FROM races WHERE id=$1`, raceID).
		Scan(&r.ID, &r.Name, &r.Circuit, &r.Round, &r.Season, &r.StartTime)
	if err == sql.ErrNoRows {
		return Race{}, ErrNotFound
	}
	if err != nil {
		return Race{}, err
	}
	return r, nil
}

// Seed faz upsert do calendário. Idempotente: rodar de novo só atualiza.
func (p *Postgres) Seed(ctx context.Context, races []Race) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range races {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO races (id, name, circuit, round, season, start_time)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (id) DO UPDATE SET
			  name = EXCLUDED.name,
			  circuit = EXCLUDED.circuit,
			  start_time = EXCLUDED.start_time`,
			r.ID, r.Name, r.Circuit, r.Round, r.Season, r.StartTime); err != nil {
			return err
		}
	}
	return tx.Commit()
}
