package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NotifyChannel is the LISTEN channel the documents trigger publishes on. The
// payload is the name of the changed collection.
const NotifyChannel = "documents_changed"

// PostgresRepo stores documents as jsonb rows in the documents table.
type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
	logger  *zap.Logger
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration, logger *zap.Logger) *PostgresRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresRepo{db: db, timeout: timeout, logger: logger}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresRepo) Query(ctx context.Context, q Query) ([]Document, error) {
	filter := make(map[string]any, len(q.Filters))
	for _, f := range q.Filters {
		filter[f.Field] = f.Value
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode filter: %w", err)
	}

	const query = `
		SELECT id, data, created_at
		FROM documents
		WHERE collection = $1 AND data @> $2::jsonb
		ORDER BY created_at ASC, id ASC
	`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, query, q.Collection, filterJSON)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var d Document
		var raw []byte
		if err := rows.Scan(&d.ID, &raw, &d.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &d.Data); err != nil {
			return nil, fmt.Errorf("docstore: decode document %s: %w", d.ID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Add(ctx context.Context, collection string, data Fields) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("docstore: encode document: %w", err)
	}

	const query = `
		INSERT INTO documents (collection, data)
		VALUES ($1, $2::jsonb)
		RETURNING id
	`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	var id string
	if err := r.db.QueryRow(timeoutCtx, query, collection, payload).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (r *PostgresRepo) Update(ctx context.Context, collection, id string, fields Fields) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("docstore: encode patch: %w", err)
	}

	const query = `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, query, collection, id, patch)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Delete(ctx context.Context, collection, id string) error {
	const query = `DELETE FROM documents WHERE collection = $1 AND id = $2`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(timeoutCtx, query, collection, id)
	return err
}

// Subscribe holds a dedicated connection listening on NotifyChannel and
// re-runs q whenever its collection changes.
func (r *PostgresRepo) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("docstore: acquire listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("docstore: listen: %w", err)
	}
	r.logger.Debug("subscription opened", zap.String("collection", q.Collection))

	return NewSubscription(ctx, func(ctx context.Context, emit func(Snapshot) bool) error {
		defer func() {
			// Drop the listening connection instead of returning it to the pool.
			_ = conn.Conn().Close(context.Background())
			conn.Release()
			r.logger.Debug("subscription closed", zap.String("collection", q.Collection))
		}()

		for {
			docs, err := r.Query(ctx, q)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if !emit(Snapshot{Docs: docs}) {
				return nil
			}

			for {
				n, err := conn.Conn().WaitForNotification(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("docstore: wait for notification: %w", err)
				}
				if n.Payload == q.Collection {
					break
				}
			}
		}
	}), nil
}
