package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"insta-outreach/internal/core/domain"
	"insta-outreach/internal/core/ports"
)

type PostgresStorage struct {
	Pool *pgxpool.Pool
}

var _ ports.CampaignStore = (*PostgresStorage)(nil)

func NewPostgresStorage(ctx context.Context, connStr string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	s := &PostgresStorage{Pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStorage) Close() {
	s.Pool.Close()
}

func (s *PostgresStorage) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS campaigns (
			id TEXT PRIMARY KEY,
			product JSONB NOT NULL,
			product_info TEXT NOT NULL,
			users JSONB NOT NULL,
			summary JSONB NOT NULL,
			success_count INT NOT NULL,
			total_users INT NOT NULL,
			overall_status TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_results (
			campaign_id TEXT REFERENCES campaigns(id) ON DELETE CASCADE,
			position INT NOT NULL,
			username TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT NOT NULL,
			PRIMARY KEY (campaign_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS campaigns_started_at_idx ON campaigns (started_at DESC)`,
	}

	for _, q := range queries {
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// SaveCampaign writes the campaign and its per-user results in one
// transaction. Saving the same id twice replaces the earlier row.
func (s *PostgresStorage) SaveCampaign(ctx context.Context, rec domain.CampaignRecord) error {
	product, err := json.Marshal(rec.Product)
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}
	users, err := json.Marshal(rec.Users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	return pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO campaigns (id, product, product_info, users, summary, success_count, total_users, overall_status, started_at, finished_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO UPDATE SET
			 product = $2, product_info = $3, users = $4, summary = $5, success_count = $6,
			 total_users = $7, overall_status = $8, started_at = $9, finished_at = $10`,
			rec.ID, product, rec.ProductInfo, users, summary, rec.Summary.SuccessCount,
			rec.Summary.TotalUsers, string(rec.Summary.OverallStatus), rec.StartedAt, rec.FinishedAt)
		if err != nil {
			return fmt.Errorf("insert campaign: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM campaign_results WHERE campaign_id = $1`, rec.ID); err != nil {
			return fmt.Errorf("clear results: %w", err)
		}

		batch := &pgx.Batch{}
		for i, r := range rec.Results {
			batch.Queue(`INSERT INTO campaign_results (campaign_id, position, username, status, detail) VALUES ($1, $2, $3, $4, $5)`,
				rec.ID, i, r.Username, string(r.Status), r.Detail)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert results: %w", err)
		}
		return nil
	})
}

func (s *PostgresStorage) RecentCampaigns(ctx context.Context, limit int) ([]domain.CampaignRecord, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, product, product_info, users, summary, started_at, finished_at
		 FROM campaigns ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.CampaignRecord
	for rows.Next() {
		var (
			rec                     domain.CampaignRecord
			product, users, summary []byte
		)
		if err := rows.Scan(&rec.ID, &product, &rec.ProductInfo, &users, &summary, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(product, &rec.Product); err != nil {
			return nil, fmt.Errorf("decode product of %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal(users, &rec.Users); err != nil {
			return nil, fmt.Errorf("decode users of %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal(summary, &rec.Summary); err != nil {
			return nil, fmt.Errorf("decode summary of %s: %w", rec.ID, err)
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range res {
		if res[i].Results, err = s.results(ctx, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *PostgresStorage) results(ctx context.Context, campaignID string) ([]domain.ResultRecord, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT username, status, detail FROM campaign_results WHERE campaign_id = $1 ORDER BY position`, campaignID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ResultRecord, error) {
		var r domain.ResultRecord
		var status string
		err := row.Scan(&r.Username, &status, &r.Detail)
		r.Status = domain.Status(status)
		return r, err
	})
}
