package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TableStat is a row of pg_stat_user_tables.
type TableStat struct {
	Table     string `json:"table" db:"table_name"`
	LiveRows  int64  `json:"liveRows" db:"live_rows"`
	DeadRows  int64  `json:"deadRows" db:"dead_rows"`
	SeqScans  int64  `json:"seqScans" db:"seq_scans"`
	IdxScans  int64  `json:"idxScans" db:"idx_scans"`
	SizeBytes int64  `json:"sizeBytes" db:"size_bytes"`
}

// IndexStat is an index that has never been scanned.
type IndexStat struct {
	Table     string `json:"table" db:"table_name"`
	Index     string `json:"index" db:"index_name"`
	SizeBytes int64  `json:"sizeBytes" db:"size_bytes"`
}

type Health struct {
	Tables        []TableStat `json:"tables"`
	UnusedIndexes []IndexStat `json:"unusedIndexes"`
}

const tableStatsSQL = `
SELECT relname AS table_name,
	n_live_tup AS live_rows,
	n_dead_tup AS dead_rows,
	seq_scan AS seq_scans,
	COALESCE(idx_scan, 0) AS idx_scans,
	pg_total_relation_size(relid) AS size_bytes
FROM pg_stat_user_tables
ORDER BY n_live_tup DESC`

// primary key and unique indexes enforce constraints and are never reported.
const unusedIndexesSQL = `
SELECT s.relname AS table_name,
	s.indexrelname AS index_name,
	pg_relation_size(s.indexrelid) AS size_bytes
FROM pg_stat_user_indexes s
JOIN pg_index i ON i.indexrelid = s.indexrelid
WHERE s.idx_scan = 0 AND NOT i.indisunique
ORDER BY pg_relation_size(s.indexrelid) DESC`

// CheckHealth reports table statistics and unused indexes.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) (*Health, error) {
	rows, err := pool.Query(ctx, tableStatsSQL)
	if err != nil {
		return nil, err
	}
	tables, err := pgx.CollectRows(rows, pgx.RowToStructByName[TableStat])
	if err != nil {
		return nil, err
	}
	rows, err = pool.Query(ctx, unusedIndexesSQL)
	if err != nil {
		return nil, err
	}
	idx, err := pgx.CollectRows(rows, pgx.RowToStructByName[IndexStat])
	if err != nil {
		return nil, err
	}
	return &Health{Tables: tables, UnusedIndexes: idx}, nil
}
