package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/finstat/internal/db"
	"github.com/sells-group/finstat/internal/model"
	"github.com/sells-group/finstat/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// hottest store operations.
var preparedStatements = map[string]string{
	"get_company": `SELECT id, name, ticker, website, created_at FROM companies WHERE id = $1`,
	"fetch_extractions": `SELECT e.id, e.document_id, d.company_id, e.statement_type, d.fiscal_year, e.line_items, e.created_at
		 FROM raw_extractions e JOIN documents d ON d.id = e.document_id
		 WHERE d.company_id = $1 AND e.statement_type = $2
		 ORDER BY d.fiscal_year DESC, e.id`,
	"get_statement": `SELECT id, data, updated_at FROM compiled_statements WHERE company_id = $1 AND statement_type = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	ticker     TEXT NOT NULL DEFAULT '',
	website    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	company_id    TEXT NOT NULL REFERENCES companies(id),
	url           TEXT NOT NULL,
	fiscal_year   INT NOT NULL,
	document_type TEXT NOT NULL DEFAULT '',
	file_path     TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, url)
);

CREATE TABLE IF NOT EXISTS raw_extractions (
	id             TEXT PRIMARY KEY,
	document_id    TEXT NOT NULL REFERENCES documents(id),
	statement_type TEXT NOT NULL,
	line_items     JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (document_id, statement_type)
);

CREATE TABLE IF NOT EXISTS compiled_statements (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL REFERENCES companies(id),
	statement_type TEXT NOT NULL,
	data           JSONB NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, statement_type)
);

CREATE TABLE IF NOT EXISTS company_leases (
	company_id TEXT PRIMARY KEY,
	holder     TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_company_id ON documents(company_id);
CREATE INDEX IF NOT EXISTS idx_raw_extractions_document_id ON raw_extractions(document_id);
CREATE INDEX IF NOT EXISTS idx_compiled_statements_company ON compiled_statements(company_id, statement_type);
`

// Migrate applies the schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return resilience.Storage(eris.Wrap(err, "postgres: migrate"))
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// GetCompany fetches a company by ID.
func (s *PostgresStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, ticker, website, created_at FROM companies WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Ticker, &c.Website, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, resilience.NotFound(eris.Errorf("postgres: company %s not found", id))
	}
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "postgres: get company"))
	}
	return &c, nil
}

// CreateCompany inserts a company, assigning an ID when absent.
func (s *PostgresStore) CreateCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO companies (id, name, ticker, website, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Ticker, c.Website, c.CreatedAt,
	)
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "postgres: create company"))
	}
	return &c, nil
}

// UpsertDocument inserts or refreshes a discovered document, unique on
// (company ID, URL).
func (s *PostgresStore) UpsertDocument(ctx context.Context, doc model.Document) (*model.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO documents (id, company_id, url, fiscal_year, document_type, file_path, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (company_id, url) DO UPDATE SET
			fiscal_year = EXCLUDED.fiscal_year,
			document_type = EXCLUDED.document_type,
			file_path = EXCLUDED.file_path
		 RETURNING id, created_at`,
		doc.ID, doc.CompanyID, doc.URL, doc.FiscalYear, doc.DocumentType, doc.FilePath, now,
	).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "postgres: upsert document"))
	}
	return &doc, nil
}

// ListDocuments returns a company's documents, newest fiscal year first.
func (s *PostgresStore) ListDocuments(ctx context.Context, companyID string) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, url, fiscal_year, document_type, file_path, created_at
		 FROM documents WHERE company_id = $1 ORDER BY fiscal_year DESC, url`, companyID)
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "postgres: list documents"))
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.URL, &d.FiscalYear, &d.DocumentType, &d.FilePath, &d.CreatedAt); err != nil {
			return nil, resilience.Storage(eris.Wrap(err, "postgres: scan document"))
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "postgres: list documents rows"))
	}
	return docs, nil
}

// ReplaceExtraction stores an extraction's line items wholesale, unique on
// (document ID, statement type). The row ID is stable across replacements.
func (s *PostgresStore) ReplaceExtraction(ctx context.Context, ext model.RawExtraction) (*model.RawExtraction, error) {
	if ext.ID == "" {
		ext.ID = uuid.NewString()
	}
	items, err := json.Marshal(ext.LineItems)
	if err != nil {
		return nil, resilience.Validation(eris.Wrap(err, "postgres: marshal line items"))
	}
	now := time.Now().UTC()
	err = s.pool.QueryRow(ctx,
		`INSERT INTO raw_extractions (id, document_id, statement_type, line_items, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (document_id, statement_type) DO UPDATE SET line_items = EXCLUDED.line_items
		 RETURNING id, created_at`,
		ext.ID, ext.DocumentID, string(ext.StatementType), items, now,
	).Scan(&ext.ID, &ext.CreatedAt)
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "postgres: replace extraction"))
	}
	return &ext, nil
}

// FetchExtractions loads all extractions for a company and statement type,
// fiscal year joined from the owning document. Extractions whose payload
// fails to decode are skipped with a warning rather than failing the fetch.
func (s *PostgresStore) FetchExtractions(ctx context.Context, companyID string, st model.StatementType) ([]model.RawExtraction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.id, e.document_id, d.company_id, e.statement_type, d.fiscal_year, e.line_items, e.created_at
		 FROM raw_extractions e JOIN documents d ON d.id = e.document_id
		 WHERE d.company_id = $1 AND e.statement_type = $2
		 ORDER BY d.fiscal_year DESC, e.id`, companyID, string(st))
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "postgres: fetch extractions"))
	}
	defer rows.Close()

	var exts []model.RawExtraction
	for rows.Next() {
		var ext model.RawExtraction
		var items []byte
		if err := rows.Scan(&ext.ID, &ext.DocumentID, &ext.CompanyID, &ext.StatementType, &ext.FiscalYear, &items, &ext.CreatedAt); err != nil {
			return nil, resilience.Storage(eris.Wrap(err, "postgres: scan extraction"))
		}
		if err := json.Unmarshal(items, &ext.LineItems); err != nil {
			zap.L().Warn("postgres: skipping extraction with malformed line items",
				zap.String("extraction_id", ext.ID),
				zap.Error(err),
			)
			continue
		}
		exts = append(exts, ext)
	}
	if err := rows.Err(); err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "postgres: fetch extractions rows"))
	}
	return exts, nil
}

// UpsertStatement writes a compiled statement atomically, unique on
// (company ID, statement type). The stored row ID survives recompilation.
func (s *PostgresStore) UpsertStatement(ctx context.Context, stmt *model.CompiledStatement) (*model.CompiledStatement, error) {
	if stmt.ID == "" {
		stmt.ID = uuid.NewString()
	}
	stmt.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(stmt)
	if err != nil {
		return nil, resilience.Validation(eris.Wrap(err, "postgres: marshal statement"))
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO compiled_statements (id, company_id, statement_type, data, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (company_id, statement_type) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		stmt.ID, stmt.CompanyID, string(stmt.StatementType), data, stmt.UpdatedAt,
	).Scan(&stmt.ID)
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "postgres: upsert statement"))
	}
	return stmt, nil
}

// GetStatement fetches the compiled statement for a company and type.
func (s *PostgresStore) GetStatement(ctx context.Context, companyID string, st model.StatementType) (*model.CompiledStatement, error) {
	var id string
	var data []byte
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT id, data, updated_at FROM compiled_statements WHERE company_id = $1 AND statement_type = $2`,
		companyID, string(st),
	).Scan(&id, &data, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, resilience.NotFound(eris.Errorf("postgres: no compiled %s for company %s", st, companyID))
	}
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "postgres: get statement"))
	}

	var stmt model.CompiledStatement
	if err := json.Unmarshal(data, &stmt); err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "postgres: decode statement"))
	}
	stmt.ID = id
	stmt.UpdatedAt = updatedAt
	return &stmt, nil
}

// AcquireLease takes the per-company advisory lease. Returns false when a
// different holder's lease is still live; an expired lease is taken over.
func (s *PostgresStore) AcquireLease(ctx context.Context, companyID, holder string, ttl time.Duration) (bool, error) {
	expires := time.Now().UTC().Add(ttl)
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO company_leases (company_id, holder, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (company_id) DO UPDATE SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
		 WHERE company_leases.expires_at < now() OR company_leases.holder = EXCLUDED.holder`,
		companyID, holder, expires,
	)
	if err != nil {
		return false, resilience.Storage(eris.Wrap(err, "postgres: acquire lease"))
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseLease drops the lease if still held by holder.
func (s *PostgresStore) ReleaseLease(ctx context.Context, companyID, holder string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM company_leases WHERE company_id = $1 AND holder = $2`, companyID, holder,
	); err != nil {
		return resilience.Storage(eris.Wrap(err, "postgres: release lease"))
	}
	return nil
}
