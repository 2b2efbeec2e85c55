package main

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool" // Для объединения{pooling} Postgres
)

const positionsTable = "store_positions"

type DB struct {
	pool *pgxpool.Pool
} // Оберточная струкутра вокруг пула, реализует Persister

func NewDB(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil { // Анализирует DSN в конфигурацию пула
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	db := &DB{pool: pool}
	if err := db.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) ensureSchema(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS `+positionsTable+` (
            position integer PRIMARY KEY,
            value    bigint
        )`)
	return err
}

// Load читает все позиции; NULL - пустое значение. Пропуски в нумерации тоже пустые.
func (db *DB) Load(ctx context.Context) ([]Item, error) {
	rows, err := db.pool.Query(ctx, `SELECT position, value FROM `+positionsTable+` ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var position int
		var value *int64
		if err := rows.Scan(&position, &value); err != nil {
			return nil, err
		}
		items = placeRow(items, position, value)
	}
	return items, rows.Err()
}

// placeRow кладёт строку таблицы в плотный срез, дополняя его пустыми ячейками
func placeRow(items []Item, position int, value *int64) []Item {
	if position < 0 {
		return items
	}
	if position >= len(items) {
		items = append(items, make([]Item, position-len(items)+1)...)
	}
	if value != nil {
		items[position] = Some(*value)
	}
	return items
}

// Save переписывает таблицу целиком в одной транзакции
func (db *DB) Save(ctx context.Context, items []Item) error {
	// position - integer колонка; int32(i) в itemRows не должен переполниться
	if len(items) > math.MaxInt32 {
		return fmt.Errorf("%w: extent %d", errPositionTooLarge, len(items))
	}
	tx, err := db.pool.Begin(ctx) // Начинает транзакцию
	if err != nil {
		return err
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx) // Защита от отложенного отката
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM `+positionsTable); err != nil {
		return err
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{positionsTable}, []string{"position", "value"}, pgx.CopyFromRows(itemRows(items)))
	if err != nil {
		return err
	}
	if int(n) != len(items) {
		return fmt.Errorf("copied %d of %d positions", n, len(items))
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	tx = nil
	return nil
}

// itemRows - строки для COPY; пустое значение уходит как NULL
func itemRows(items []Item) [][]any {
	rows := make([][]any, len(items))
	for i, it := range items {
		var v any
		if it.Valid {
			v = it.Value
		}
		rows[i] = []any{int32(i), v}
	}
	return rows
}
