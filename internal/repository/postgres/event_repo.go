package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xela07ax/strictgate/internal/audit"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
)

type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(connString string) *EventRepo {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		// В main мы проверим соединение через Ping
		log.Fatal(err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &EventRepo{db: db}
}

func (r *EventRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *EventRepo) WriteBatch(ctx context.Context, events []audit.ProcessingEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице processing_events
	numFields := 11
	placeholderStr := ""
	vals := make([]interface{}, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10, p+11)

		errs, _ := json.Marshal(e.Errors)

		vals = append(vals,
			e.ID, e.TraceID, e.InputHash, e.Operation,
			e.ProcessorUsed, e.FailedOver, e.Status, errs,
			e.RetriesAttempted, e.ProcessingTimeMs, e.Timestamp,
		)
	}

	// Убираем лишнюю запятую в конце
	query := fmt.Sprintf(
		"INSERT INTO processing_events (id, trace_id, input_hash, operation, processor_used, failed_over, status, errors, retries_attempted, processing_time_ms, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}

// RecentDegraded возвращает имена процессоров, чей последний зафиксированный
// статус — failure, для прогрева health-кэша при старте.
func (r *EventRepo) RecentDegraded(ctx context.Context, window time.Duration) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT processor_used
		FROM processing_events
		WHERE timestamp > $1
		GROUP BY processor_used
		HAVING bool_and(status = 'failure')`,
		time.Now().Add(-window),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
