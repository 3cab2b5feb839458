package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/finstat/internal/model"
	"github.com/sells-group/finstat/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local and dev
// use where no Postgres is available.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	ticker     TEXT NOT NULL DEFAULT '',
	website    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	company_id    TEXT NOT NULL REFERENCES companies(id),
	url           TEXT NOT NULL,
	fiscal_year   INTEGER NOT NULL,
	document_type TEXT NOT NULL DEFAULT '',
	file_path     TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	UNIQUE (company_id, url)
);

CREATE TABLE IF NOT EXISTS raw_extractions (
	id             TEXT PRIMARY KEY,
	document_id    TEXT NOT NULL REFERENCES documents(id),
	statement_type TEXT NOT NULL,
	line_items     TEXT NOT NULL,
	created_at     DATETIME NOT NULL,
	UNIQUE (document_id, statement_type)
);

CREATE TABLE IF NOT EXISTS compiled_statements (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL REFERENCES companies(id),
	statement_type TEXT NOT NULL,
	data           TEXT NOT NULL,
	updated_at     DATETIME NOT NULL,
	UNIQUE (company_id, statement_type)
);

CREATE TABLE IF NOT EXISTS company_leases (
	company_id TEXT PRIMARY KEY,
	holder     TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_company_id ON documents(company_id);
CREATE INDEX IF NOT EXISTS idx_raw_extractions_document_id ON raw_extractions(document_id);
CREATE INDEX IF NOT EXISTS idx_compiled_statements_company ON compiled_statements(company_id, statement_type);
`

// Migrate applies the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return resilience.Storage(eris.Wrap(err, "sqlite: migrate"))
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetCompany fetches a company by ID.
func (s *SQLiteStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, ticker, website, created_at FROM companies WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Ticker, &c.Website, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, resilience.NotFound(eris.Errorf("sqlite: company %s not found", id))
	}
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "sqlite: get company"))
	}
	return &c, nil
}

// CreateCompany inserts a company, assigning an ID when absent.
func (s *SQLiteStore) CreateCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, ticker, website, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Ticker, c.Website, c.CreatedAt,
	)
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "sqlite: create company"))
	}
	return &c, nil
}

// UpsertDocument inserts or refreshes a discovered document.
func (s *SQLiteStore) UpsertDocument(ctx context.Context, doc model.Document) (*model.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO documents (id, company_id, url, fiscal_year, document_type, file_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (company_id, url) DO UPDATE SET
			fiscal_year = excluded.fiscal_year,
			document_type = excluded.document_type,
			file_path = excluded.file_path
		 RETURNING id, created_at`,
		doc.ID, doc.CompanyID, doc.URL, doc.FiscalYear, doc.DocumentType, doc.FilePath, now,
	).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "sqlite: upsert document"))
	}
	return &doc, nil
}

// ListDocuments returns a company's documents, newest fiscal year first.
func (s *SQLiteStore) ListDocuments(ctx context.Context, companyID string) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, url, fiscal_year, document_type, file_path, created_at
		 FROM documents WHERE company_id = ? ORDER BY fiscal_year DESC, url`, companyID)
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "sqlite: list documents"))
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.URL, &d.FiscalYear, &d.DocumentType, &d.FilePath, &d.CreatedAt); err != nil {
			return nil, resilience.Storage(eris.Wrap(err, "sqlite: scan document"))
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "sqlite: list documents rows"))
	}
	return docs, nil
}

// ReplaceExtraction stores an extraction's line items wholesale.
func (s *SQLiteStore) ReplaceExtraction(ctx context.Context, ext model.RawExtraction) (*model.RawExtraction, error) {
	if ext.ID == "" {
		ext.ID = uuid.NewString()
	}
	items, err := json.Marshal(ext.LineItems)
	if err != nil {
		return nil, resilience.Validation(eris.Wrap(err, "sqlite: marshal line items"))
	}
	now := time.Now().UTC()
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO raw_extractions (id, document_id, statement_type, line_items, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (document_id, statement_type) DO UPDATE SET line_items = excluded.line_items
		 RETURNING id, created_at`,
		ext.ID, ext.DocumentID, string(ext.StatementType), string(items), now,
	).Scan(&ext.ID, &ext.CreatedAt)
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "sqlite: replace extraction"))
	}
	return &ext, nil
}

// FetchExtractions loads all extractions for a company and statement type.
func (s *SQLiteStore) FetchExtractions(ctx context.Context, companyID string, st model.StatementType) ([]model.RawExtraction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.document_id, d.company_id, e.statement_type, d.fiscal_year, e.line_items, e.created_at
		 FROM raw_extractions e JOIN documents d ON d.id = e.document_id
		 WHERE d.company_id = ? AND e.statement_type = ?
		 ORDER BY d.fiscal_year DESC, e.id`, companyID, string(st))
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "sqlite: fetch extractions"))
	}
	defer rows.Close()

	var exts []model.RawExtraction
	for rows.Next() {
		var ext model.RawExtraction
		var items string
		if err := rows.Scan(&ext.ID, &ext.DocumentID, &ext.CompanyID, &ext.StatementType, &ext.FiscalYear, &items, &ext.CreatedAt); err != nil {
			return nil, resilience.Storage(eris.Wrap(err, "sqlite: scan extraction"))
		}
		if err := json.Unmarshal([]byte(items), &ext.LineItems); err != nil {
			zap.L().Warn("sqlite: skipping extraction with malformed line items",
				zap.String("extraction_id", ext.ID),
				zap.Error(err),
			)
			continue
		}
		exts = append(exts, ext)
	}
	if err := rows.Err(); err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "sqlite: fetch extractions rows"))
	}
	return exts, nil
}

// UpsertStatement writes a compiled statement atomically.
func (s *SQLiteStore) UpsertStatement(ctx context.Context, stmt *model.CompiledStatement) (*model.CompiledStatement, error) {
	if stmt.ID == "" {
		stmt.ID = uuid.NewString()
	}
	stmt.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(stmt)
	if err != nil {
		return nil, resilience.Validation(eris.Wrap(err, "sqlite: marshal statement"))
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO compiled_statements (id, company_id, statement_type, data, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (company_id, statement_type) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
		 RETURNING id`,
		stmt.ID, stmt.CompanyID, string(stmt.StatementType), string(data), stmt.UpdatedAt,
	).Scan(&stmt.ID)
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "sqlite: upsert statement"))
	}
	return stmt, nil
}

// GetStatement fetches the compiled statement for a company and type.
func (s *SQLiteStore) GetStatement(ctx context.Context, companyID string, st model.StatementType) (*model.CompiledStatement, error) {
	var id, data string
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT id, data, updated_at FROM compiled_statements WHERE company_id = ? AND statement_type = ?`,
		companyID, string(st),
	).Scan(&id, &data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, resilience.NotFound(eris.Errorf("sqlite: no compiled %s for company %s", st, companyID))
	}
	if err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "sqlite: get statement"))
	}

	var stmt model.CompiledStatement
	if err := json.Unmarshal([]byte(data), &stmt); err != nil {
		return nil, resilience.Storage(eris.Wrap(err, "sqlite: decode statement"))
	}
	stmt.ID = id
	stmt.UpdatedAt = updatedAt
	return &stmt, nil
}

// AcquireLease takes the per-company advisory lease. Expiry is stored as a
// unix timestamp so the comparison stays in SQLite.
func (s *SQLiteStore) AcquireLease(ctx context.Context, companyID, holder string, ttl time.Duration) (bool, error) {
	expires := time.Now().UTC().Add(ttl).Unix()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO company_leases (company_id, holder, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (company_id) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		 WHERE company_leases.expires_at < CAST(strftime('%s', 'now') AS INTEGER)
			OR company_leases.holder = excluded.holder`,
		companyID, holder, expires,
	)
	if err != nil {
		return false, resilience.Storage(eris.Wrap(err, "sqlite: acquire lease"))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, resilience.Storage(eris.Wrap(err, "sqlite: acquire lease rows"))
	}
	return n == 1, nil
}

// ReleaseLease drops the lease if still held by holder.
func (s *SQLiteStore) ReleaseLease(ctx context.Context, companyID, holder string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM company_leases WHERE company_id = ? AND holder = ?`, companyID, holder,
	); err != nil {
		return resilience.Storage(eris.Wrap(err, "sqlite: release lease"))
	}
	return nil
}
