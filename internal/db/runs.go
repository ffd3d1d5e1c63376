package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/occupancy/internal/sampler"
)

// Run is the metadata of one stored sampler run.
type Run struct {
	ID         string    `json:"run_id"`
	Model      string    `json:"model"`
	Dataset    string    `json:"dataset"`
	Params     []string  `json:"params"`
	ConfigJSON string    `json:"config_json"`
	Chains     int       `json:"chains"`
	Iterations int       `json:"iterations"`
	BurnIn     int       `json:"burn_in"`
	Thin       int       `json:"thin"`
	Seed       uint64    `json:"seed"`
	Impossible int       `json:"impossible"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}

// SaveRun stores run, every kept draw of res and sums in one transaction.
// A new ID is assigned when run.ID is empty. Returns the stored ID.
func (db *DB) SaveRun(ctx context.Context, run Run, res *sampler.Result, sums []sampler.Summary) (string, error) {
	if res == nil {
		return "", fmt.Errorf("save run: nil result")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	} else if _, err := uuid.Parse(run.ID); err != nil {
		return "", fmt.Errorf("save run: invalid run id %q: %w", run.ID, err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.ConfigJSON == "" {
		run.ConfigJSON = "{}"
	}
	run.Params = res.Names
	run.Chains = len(res.Chains)
	run.Impossible = 0
	for _, c := range res.Chains {
		run.Impossible += c.Impossible
	}

	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, model, dataset, params, config_json, chains, iterations,
			burn_in, thin, seed, impossible, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Model, run.Dataset, string(paramsJSON), run.ConfigJSON, run.Chains, run.Iterations,
		run.BurnIn, run.Thin, int64(run.Seed), run.Impossible, run.Notes, run.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	drawStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO draws (run_id, chain, iteration, log_density, theta_json)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer drawStmt.Close()

	for _, c := range res.Chains {
		for k, theta := range c.Draws {
			thetaJSON, err := json.Marshal(theta)
			if err != nil {
				return "", err
			}
			var ld sql.NullFloat64
			if k < len(c.LogDensity) {
				ld = nullFloat(c.LogDensity[k])
			}
			if _, err := drawStmt.ExecContext(ctx, run.ID, c.ID, k, ld, string(thetaJSON)); err != nil {
				return "", fmt.Errorf("failed to insert draw %d of chain %d: %w", k, c.ID, err)
			}
		}
	}

	for j, s := range sums {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO summaries (
				run_id, param_index, param, mean, sd, q025, median, q975,
				rhat, acceptance_rate, draws
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, j, s.Name, nullFloat(s.Mean), nullFloat(s.SD), nullFloat(s.Q025),
			nullFloat(s.Median), nullFloat(s.Q975), nullFloat(s.RHat), nullFloat(s.AcceptanceRate), s.Draws,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert summary for %s: %w", s.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

const runColumns = `run_id, model, dataset, params, config_json, chains, iterations,
	burn_in, thin, seed, impossible, notes, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r          Run
		paramsJSON string
		seed       int64
	)
	err := row.Scan(&r.ID, &r.Model, &r.Dataset, &paramsJSON, &r.ConfigJSON, &r.Chains, &r.Iterations,
		&r.BurnIn, &r.Thin, &seed, &r.Impossible, &r.Notes, &r.CreatedAt)
	if err != nil {
		return Run{}, err
	}
	r.Seed = uint64(seed)
	if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
		return Run{}, fmt.Errorf("run %s: bad params column: %w", r.ID, err)
	}
	return r, nil
}

// GetRun returns the metadata of one run.
func (db *DB) GetRun(ctx context.Context, id string) (Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, run_id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadDraws rebuilds the kept draws of a run as a sampler.Result. Chain
// acceptance counters are not stored and come back empty.
func (db *DB) LoadDraws(ctx context.Context, id string) (*sampler.Result, error) {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT chain, log_density, theta_json FROM draws
		WHERE run_id = ? ORDER BY chain, iteration`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := &sampler.Result{Names: run.Params}
	index := map[int]int{}
	for rows.Next() {
		var (
			chain     int
			ld        sql.NullFloat64
			thetaJSON string
		)
		if err := rows.Scan(&chain, &ld, &thetaJSON); err != nil {
			return nil, err
		}
		var theta []float64
		if err := json.Unmarshal([]byte(thetaJSON), &theta); err != nil {
			return nil, fmt.Errorf("run %s chain %d: bad draw: %w", id, chain, err)
		}
		ci, ok := index[chain]
		if !ok {
			ci = len(res.Chains)
			index[chain] = ci
			res.Chains = append(res.Chains, sampler.Chain{ID: chain})
		}
		c := &res.Chains[ci]
		c.Draws = append(c.Draws, theta)
		c.LogDensity = append(c.LogDensity, fromNull(ld))
	}
	return res, rows.Err()
}

// LoadSummaries returns the stored summaries of a run in parameter order.
func (db *DB) LoadSummaries(ctx context.Context, id string) ([]sampler.Summary, error) {
	if _, err := db.GetRun(ctx, id); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT param, mean, sd, q025, median, q975, rhat, acceptance_rate, draws
		FROM summaries WHERE run_id = ? ORDER BY param_index`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sums []sampler.Summary
	for rows.Next() {
		var s sampler.Summary
		var mean, sd, q025, median, q975, rhat, rate sql.NullFloat64
		if err := rows.Scan(&s.Name, &mean, &sd, &q025, &median, &q975, &rhat, &rate, &s.Draws); err != nil {
			return nil, err
		}
		s.Mean, s.SD = fromNull(mean), fromNull(sd)
		s.Q025, s.Median, s.Q975 = fromNull(q025), fromNull(median), fromNull(q975)
		s.RHat, s.AcceptanceRate = fromNull(rhat), fromNull(rate)
		sums = append(sums, s)
	}
	return sums, rows.Err()
}

// DeleteRun removes a run with its draws and summaries.
func (db *DB) DeleteRun(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"draws", "summaries"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tx.Commit()
}

// nullFloat stores NaN and infinities as NULL; SQLite has no NaN.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
