package nodes

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/flowbase-io/flowbase/internal/node/runtime"
)

// Database runs a SQL statement against postgres or mysql. Query rows
// come back as a list of mappings; exec statements report the affected
// row count.
type Database struct{}

func NewDatabase() *Database { return &Database{} }

func (d *Database) Type() string { return "database" }

func (d *Database) ConfigSchema() map[string]interface{} {
	return schema([]string{"driver", "dsn", "query"}, map[string]interface{}{
		"driver": prop("string", "postgres or mysql"),
		"dsn":    prop("string", "Connection string"),
		"query":  prop("string", "SQL statement"),
		"args":   prop("array", "Positional query arguments"),
		"mode":   prop("string", "query (default) or exec"),
	})
}

func (d *Database) Execute(ctx context.Context, cfg map[string]interface{}, _ runtime.Input) (interface{}, error) {
	driver, err := stringConfig(cfg, "driver")
	if err != nil {
		return nil, err
	}
	if driver != "postgres" && driver != "mysql" {
		return nil, fmt.Errorf("unsupported driver '%s'", driver)
	}
	dsn, err := stringConfig(cfg, "dsn")
	if err != nil {
		return nil, err
	}
	query, err := stringConfig(cfg, "query")
	if err != nil {
		return nil, err
	}

	var args []interface{}
	if raw, ok := cfg["args"].([]interface{}); ok {
		args = raw
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if optionalString(cfg, "mode", "query") == "exec" {
		result, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("exec failed: %w", err)
		}
		affected, _ := result.RowsAffected()
		return map[string]interface{}{"rowsAffected": affected}, nil
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var records []interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		record := make(map[string]interface{}, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				record[column] = string(b)
			} else {
				record[column] = values[i]
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return map[string]interface{}{"rows": records, "count": len(records)}, nil
}
