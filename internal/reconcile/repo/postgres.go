package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrNotFound = errors.New("unsaved bet not found")

const schema = `
CREATE TABLE IF NOT EXISTS unsaved_bets (
	id              UUID PRIMARY KEY,
	signature       TEXT NOT NULL UNIQUE,
	user_id         TEXT NOT NULL,
	wallet_address  TEXT NOT NULL,
	match_id        TEXT NOT NULL,
	fighter_name    TEXT NOT NULL,
	amount_sol      DOUBLE PRECISION NOT NULL,
	attempts        INT NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'pending',
	last_error      TEXT NOT NULL DEFAULT '',
	bet_id          TEXT NOT NULL DEFAULT '',
	next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS unsaved_bets_due_idx ON unsaved_bets (status, next_attempt_at);
`

const selectColumns = `id, signature, user_id, wallet_address, match_id, fighter_name, amount_sol,
	attempts, status, last_error, bet_id, next_attempt_at, created_at, updated_at`

// Postgres guarda o outbox de apostas não gravadas
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureSchema cria a tabela e o índice se ainda não existirem
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

// Insert grava a aposta como pending. A assinatura é única: uma segunda
// inserção devolve o id existente com created=false.
func (p *Postgres) Insert(ctx context.Context, b UnsavedBet) (id string, created bool, err error) {
	id = uuid.NewString()
	err = p.db.QueryRowContext(ctx, `
		INSERT INTO unsaved_bets (id,signature,user_id,wallet_address,match_id,fighter_name,amount_sol,last_error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (signature) DO NOTHING
		RETURNING id`,
		id, b.Signature, b.UserID, b.WalletAddress, b.MatchID, b.FighterName, b.AmountSol, b.LastError,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, err
	}

	if err = p.db.QueryRowContext(ctx, `SELECT id FROM unsaved_bets WHERE signature=$1`, b.Signature).Scan(&id); err != nil {
		return "", false, err
	}
	return id, false, nil
}

// Get busca uma linha pela assinatura
func (p *Postgres) Get(ctx context.Context, signature string) (UnsavedBet, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM unsaved_bets WHERE signature=$1`, signature)
	b, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return UnsavedBet{}, ErrNotFound
	}
	return b, err
}

// ClaimDue pega até limit linhas pending vencidas e adia next_attempt_at
// para now+lease, evitando que outro worker processe as mesmas linhas.
func (p *Postgres) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]UnsavedBet, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM unsaved_bets
		WHERE status='pending' AND next_attempt_at <= $1
		ORDER BY next_attempt_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
	if err != nil {
		return nil, err
	}

	var out []UnsavedBet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, b)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(out) == 0 {
		return nil, tx.Commit()
	}

	ids := make([]string, len(out))
	for i, b := range out {
		ids[i] = b.ID
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE unsaved_bets SET next_attempt_at=$1, updated_at=now() WHERE id = ANY($2)`,
		now.Add(lease), pq.Array(ids)); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkSaved encerra a linha com o id da aposta criada no backend
func (p *Postgres) MarkSaved(ctx context.Context, id, betID string) error {
	return p.exec(ctx,
		`UPDATE unsaved_bets SET status='saved', bet_id=$2, last_error='', updated_at=now() WHERE id=$1`,
		id, betID)
}

// MarkFailedOnChain encerra a linha: a transação não entrou ou falhou na chain
func (p *Postgres) MarkFailedOnChain(ctx context.Context, id, reason string) error {
	return p.exec(ctx,
		`UPDATE unsaved_bets SET status='failed_on_chain', last_error=$2, updated_at=now() WHERE id=$1`,
		id, reason)
}

// MarkRetry conta a tentativa e reagenda a linha para next
func (p *Postgres) MarkRetry(ctx context.Context, id, lastErr string, next time.Time) error {
	return p.exec(ctx,
		`UPDATE unsaved_bets SET attempts=attempts+1, last_error=$2, next_attempt_at=$3, updated_at=now() WHERE id=$1`,
		id, lastErr, next)
}

// MarkDead conta a última tentativa e tira a linha da fila
func (p *Postgres) MarkDead(ctx context.Context, id, lastErr string) error {
	return p.exec(ctx,
		`UPDATE unsaved_bets SET status='dead', attempts=attempts+1, last_error=$2, updated_at=now() WHERE id=$1`,
		id, lastErr)
}

// CountByStatus alimenta o healthcheck e o comando status do cliente
func (p *Postgres) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT status, count(*) FROM unsaved_bets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Status]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[Status(s)] = n
	}
	return out, rows.Err()
}

func (p *Postgres) exec(ctx context.Context, query string, args ...any) error {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBet(s scanner) (UnsavedBet, error) {
	var b UnsavedBet
	var status string
	err := s.Scan(&b.ID, &b.Signature, &b.UserID, &b.WalletAddress, &b.MatchID, &b.FighterName, &b.AmountSol,
		&b.Attempts, &status, &b.LastError, &b.BetID, &b.NextAttemptAt, &b.CreatedAt, &b.UpdatedAt)
	b.Status = Status(status)
	return b, err
}
