package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Liveboard/internal/domain"
)

// DefaultBoard — ключ снимка, если имя доски не задано.
const DefaultBoard = "default"

// SnapshotRepo — снимки опубликованной коллекции заказов для тёплого старта.
// Хранится один снимок на доску, каждое сохранение перезаписывает предыдущее.
type SnapshotRepo struct {
	pool  *pgxpool.Pool
	board string
}

// NewSnapshotRepo создаёт новый SnapshotRepo.
func NewSnapshotRepo(pool *pgxpool.Pool, board string) *SnapshotRepo {
	if board == "" {
		board = DefaultBoard
	}
	return &SnapshotRepo{pool: pool, board: board}
}

// SaveSnapshot сохраняет коллекцию заказов.
func (r *SnapshotRepo) SaveSnapshot(ctx context.Context, orders []domain.Order) error {
	if orders == nil {
		orders = []domain.Order{}
	}
	ordersJSON, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("marshal orders: %w", err)
	}

	query := `
		INSERT INTO order_snapshots (board, orders, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (board) DO UPDATE
		SET orders = EXCLUDED.orders, saved_at = EXCLUDED.saved_at
	`
	if _, err := r.pool.Exec(ctx, query, r.board, ordersJSON, time.Now().UTC()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot возвращает последний снимок доски.
// Если снимка нет, возвращает nil-срез без ошибки.
func (r *SnapshotRepo) LoadSnapshot(ctx context.Context) ([]domain.Order, time.Time, error) {
	query := `
		SELECT orders, saved_at
		FROM order_snapshots
		WHERE board = $1
	`

	var ordersJSON []byte
	var savedAt time.Time
	err := r.pool.QueryRow(ctx, query, r.board).Scan(&ordersJSON, &savedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load snapshot: %w", err)
	}

	orders := []domain.Order{}
	if err := json.Unmarshal(ordersJSON, &orders); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal orders: %w", err)
	}
	return orders, savedAt, nil
}
