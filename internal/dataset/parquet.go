package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	_ "github.com/duckdb/duckdb-go/v2"
)

// parquetQuery renders each row as one JSON object, so shards decode through
// the same Row path as JSONL lines.
const parquetQuery = `SELECT CAST(to_json(t) AS VARCHAR) FROM read_parquet(?) AS t`

// parquetLines reads path with an in-memory DuckDB. In streaming mode rows
// are yielded as the driver produces them; otherwise the whole shard is read
// before the first yield. Errors go to onErr and end the sequence.
func parquetLines(ctx context.Context, path string, streaming bool, onErr func(error)) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		db, err := sql.Open("duckdb", "")
		if err != nil {
			onErr(fmt.Errorf("opening duckdb: %w", err))
			return
		}
		defer db.Close()

		rows, err := db.QueryContext(ctx, parquetQuery, path)
		if err != nil {
			onErr(fmt.Errorf("querying parquet: %w", err))
			return
		}
		defer rows.Close()

		var buffered [][]byte
		for rows.Next() {
			var line string
			if err := rows.Scan(&line); err != nil {
				onErr(fmt.Errorf("scanning parquet row: %w", err))
				return
			}
			if !streaming {
				buffered = append(buffered, []byte(line))
				continue
			}
			if !yield([]byte(line)) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			onErr(fmt.Errorf("reading parquet: %w", err))
			return
		}
		for _, line := range buffered {
			if !yield(line) {
				return
			}
		}
	}
}
