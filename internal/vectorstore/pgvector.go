package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fyrsmithlabs/reis-engine/internal/chunking"
)

// Pgvector is a vector store backed by PostgreSQL with the pgvector
// extension. indexName selects a table within the configured schema,
// letting a single database host several logical collections.
type Pgvector struct {
	pool     *pgxpool.Pool
	embedder Embedder
}

// NewPgvector connects to dsn and returns a store using embedder to compute
// query embeddings. Tables are created lazily per index name on first use.
func NewPgvector(ctx context.Context, dsn string, embedder Embedder) (*Pgvector, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connect pgvector: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("vectorstore: ping pgvector: %w", err)
	}
	return &Pgvector{pool: pool, embedder: embedder}, nil
}

// Close releases the underlying connection pool.
func (p *Pgvector) Close() {
	p.pool.Close()
}

func tableName(indexName string) string {
	if indexName == "" {
		indexName = "default"
	}
	return "chunks_" + indexName
}

func (p *Pgvector) ensureTable(ctx context.Context, table string, dims int) error {
	_, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("vectorstore: ensure pgvector extension: %w", err)
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		bucket TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		metadata JSONB NOT NULL,
		embedding vector(%d)
	)`, table, dims)
	if _, err := p.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("vectorstore: ensure table %s: %w", table, err)
	}

	idxStmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_doc_id_idx ON %q (doc_id)`, table, table)
	if _, err := p.pool.Exec(ctx, idxStmt); err != nil {
		return fmt.Errorf("vectorstore: ensure doc_id index on %s: %w", table, err)
	}

	return nil
}

func (p *Pgvector) AddDocuments(ctx context.Context, indexName string, chunks []chunking.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	embeddings := make([][]float32, len(chunks))
	for i, c := range chunks {
		vec, err := p.embedder.Embed(ctx, c.Content)
		if err != nil {
			return fmt.Errorf("%w: embed chunk %d: %v", ErrBatchFailed, i, err)
		}
		embeddings[i] = vec
	}

	table := tableName(indexName)
	if err := p.ensureTable(ctx, table, len(embeddings[0])); err != nil {
		return fmt.Errorf("%w: %v", ErrBatchFailed, err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrBatchFailed, err)
	}
	defer tx.Rollback(ctx)

	insertStmt := fmt.Sprintf(`INSERT INTO %q (id, doc_id, bucket, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			doc_id = EXCLUDED.doc_id, bucket = EXCLUDED.bucket,
			content = EXCLUDED.content, metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`, table)

	for i, c := range chunks {
		id := stringMetaOr(c.Metadata, chunking.MetaID, fmt.Sprintf("%s-%d", c.DocID(), i))
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("%w: marshal metadata: %v", ErrBatchFailed, err)
		}
		bucket, _ := c.Metadata[chunking.MetaBucket].(string)

		_, err = tx.Exec(ctx, insertStmt, id, c.DocID(), bucket, c.Content, meta, pgvector.NewVector(embeddings[i]))
		if err != nil {
			return fmt.Errorf("%w: insert chunk %d: %v", ErrBatchFailed, i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit tx: %v", ErrBatchFailed, err)
	}

	return nil
}

func (p *Pgvector) Delete(ctx context.Context, indexName, docID string) error {
	table := tableName(indexName)
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %q WHERE doc_id = $1`, table), docID)
	if err != nil {
		return fmt.Errorf("vectorstore: delete doc %s: %w", docID, err)
	}
	return nil
}

func (p *Pgvector) SimilaritySearch(ctx context.Context, indexName, query string, k int, filter Filter) ([]chunking.Chunk, error) {
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: embed query: %w", err)
	}

	table := tableName(indexName)
	whereClauses := []string{}
	args := []any{pgvector.NewVector(vec)}
	argN := 2

	if filter.Bucket != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("bucket = $%d", argN))
		args = append(args, filter.Bucket)
		argN++
	}
	if len(filter.DocIDs) > 0 {
		ids := make([]string, 0, len(filter.DocIDs))
		for id := range filter.DocIDs {
			ids = append(ids, id)
		}
		whereClauses = append(whereClauses, fmt.Sprintf("doc_id = ANY($%d)", argN))
		args = append(args, ids)
		argN++
	}

	where := ""
	for i, clause := range whereClauses {
		if i == 0 {
			where = "WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}

	args = append(args, k)
	stmt := fmt.Sprintf(`SELECT id, doc_id, content, metadata FROM %q %s ORDER BY embedding <-> $1 LIMIT $%d`, table, where, argN)

	rows, err := p.pool.Query(ctx, stmt, args...)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("vectorstore: similarity search: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func (p *Pgvector) GetDocuments(ctx context.Context, indexName string, ids []string) ([]chunking.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	table := tableName(indexName)
	stmt := fmt.Sprintf(`SELECT id, doc_id, content, metadata FROM %q WHERE id = ANY($1)`, table)

	rows, err := p.pool.Query(ctx, stmt, ids)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("vectorstore: get documents: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func scanChunks(rows pgx.Rows) ([]chunking.Chunk, error) {
	var out []chunking.Chunk
	for rows.Next() {
		var id, docID, content string
		var metaRaw []byte
		if err := rows.Scan(&id, &docID, &content, &metaRaw); err != nil {
			return nil, fmt.Errorf("vectorstore: scan row: %w", err)
		}
		var meta map[string]any
		if err := json.Unmarshal(metaRaw, &meta); err != nil {
			return nil, fmt.Errorf("vectorstore: unmarshal metadata: %w", err)
		}
		meta[chunking.MetaID] = id
		meta[chunking.MetaDocID] = docID
		out = append(out, chunking.New(content, meta))
	}
	return out, rows.Err()
}

func isUndefinedTable(err error) bool {
	return err != nil && (contains(err.Error(), "does not exist") || contains(err.Error(), "SQLSTATE 42P01"))
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func stringMetaOr(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
