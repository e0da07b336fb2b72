package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sudooom.draw/internal/model"
)

const schemaGameResults = `
	CREATE TABLE IF NOT EXISTS game_results (
		id           BIGSERIAL PRIMARY KEY,
		room_key     TEXT        NOT NULL,
		finished_at  TIMESTAMPTZ NOT NULL,
		rank         INT         NOT NULL,
		player_id    TEXT        NOT NULL,
		player_name  TEXT        NOT NULL,
		emoji        TEXT        NOT NULL DEFAULT '',
		score        INT         NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_game_results_room ON game_results (room_key, finished_at);
`

// ResultRepository 对局结果仓库
type ResultRepository struct {
	db *pgxpool.Pool
}

// NewResultRepository 创建对局结果仓库
func NewResultRepository(db *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{db: db}
}

// EnsureSchema 建表
func (r *ResultRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schemaGameResults)
	return err
}

// RecordResults 按名次批量写入一局的最终结果
// standings 已按得分降序排列，名次从 1 开始
func (r *ResultRepository) RecordResults(ctx context.Context, roomKey string, finishedAt time.Time, standings []model.Participant) error {
	if len(standings) == 0 {
		return nil
	}

	query := `
		INSERT INTO game_results (room_key, finished_at, rank, player_id, player_name, emoji, score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for i, p := range standings {
		batch.Queue(query, roomKey, finishedAt, i+1, p.ID, p.Name, p.Emoji, p.Score)
	}

	return r.db.SendBatch(ctx, batch).Close()
}

// FindByRoom 查询房间的历史结果，最近一局在前
func (r *ResultRepository) FindByRoom(ctx context.Context, roomKey string, limit int) ([]model.GameResult, error) {
	query := `
		SELECT room_key, finished_at, rank, player_id, player_name, emoji, score
		FROM game_results
		WHERE room_key = $1
		ORDER BY finished_at DESC, rank ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, roomKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.GameResult
	for rows.Next() {
		var res model.GameResult
		if err := rows.Scan(
			&res.RoomKey,
			&res.FinishedAt,
			&res.Rank,
			&res.PlayerID,
			&res.PlayerName,
			&res.Emoji,
			&res.Score,
		); err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	return results, rows.Err()
}
