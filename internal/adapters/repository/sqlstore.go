package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite

	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/pkg/logger"
	"github.com/okian/plusolver/pkg/metrics"
)

// SQLStore is a Cache backed by SQLite (modernc) or Postgres (pgx).
type SQLStore struct {
	db     *sql.DB
	driver string
	log    logger.Logger
}

var _ Cache = (*SQLStore)(nil)

// Open connects to the database, pings it and applies the schema.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	o := buildOptions(opts)

	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		var err error
		if dsn, err = prepareSQLiteDSN(dsn); err != nil {
			return nil, err
		}
	case DriverPostgres:
		drvName = "pgx"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer; also keeps a :memory: database on a single connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver, log: o.log}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateCacheItems(n)
	}
	return s, nil
}

// prepareSQLiteDSN creates the parent directory of a file path DSN and adds a
// busy timeout when the DSN carries no parameters of its own.
func prepareSQLiteDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("sqlite: empty dsn")
	}
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return dsn, nil
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return "", fmt.Errorf("sqlite: create dir: %w", err)
	}
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}
	return dsn, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func observeQuery(start time.Time) {
	metrics.RecordCacheQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

// IsPopulated implements Cache.
func (s *SQLStore) IsPopulated(ctx context.Context) (bool, error) {
	defer observeQuery(time.Now())
	var v string
	err := s.db.QueryRowContext(ctx, s.rebind(selectMetaSQL), metaPopulatedAt).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		metrics.RecordErrorByComponent("repository", "query")
		return false, fmt.Errorf("read populated marker: %w", err)
	}
	return true, nil
}

// Populate implements Cache. Items and the populated marker are written in
// one transaction so a failed pass leaves the cache unpopulated.
func (s *SQLStore) Populate(ctx context.Context, items []model.CatalogItem) (int, error) {
	defer observeQuery(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin populate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(insertItemSQL))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, it := range items {
		if it.CatalogID.IsZero() {
			s.log.Warn(ctx, "skipping catalog entry without id", logger.String("title", it.Title))
			continue
		}
		res, err := stmt.ExecContext(ctx,
			it.CatalogID.String(), it.SourceItemID.String(), it.Answer, it.Title, it.ImageRef)
		if err != nil {
			metrics.RecordErrorByComponent("repository", "insert")
			return 0, fmt.Errorf("insert %s: %w", it.CatalogID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if _, err := tx.ExecContext(ctx, s.rebind(insertMetaSQL),
		metaPopulatedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return 0, fmt.Errorf("stamp populated marker: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit populate: %w", err)
	}

	metrics.RecordCachePopulated()
	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateCacheItems(n)
	}
	s.log.Info(ctx, "answer cache populated",
		logger.Int("received", len(items)), logger.Int("inserted", inserted))
	return inserted, nil
}

// Lookup implements Cache.
func (s *SQLStore) Lookup(ctx context.Context, catalogID model.ID) (string, bool, error) {
	defer observeQuery(time.Now())
	var answer string
	err := s.db.QueryRowContext(ctx, s.rebind(selectAnswerSQL), catalogID.String()).Scan(&answer)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordCacheLookup(false)
		return "", false, nil
	}
	if err != nil {
		metrics.RecordErrorByComponent("repository", "query")
		return "", false, fmt.Errorf("lookup %s: %w", catalogID, err)
	}
	metrics.RecordCacheLookup(true)
	return answer, true, nil
}

// Get implements Cache.
func (s *SQLStore) Get(ctx context.Context, catalogID model.ID) (model.CatalogItem, error) {
	defer observeQuery(time.Now())
	row := s.db.QueryRowContext(ctx, s.rebind(selectItemSQL), catalogID.String())
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.CatalogItem{}, ErrNotFound
	}
	if err != nil {
		return model.CatalogItem{}, fmt.Errorf("get %s: %w", catalogID, err)
	}
	return it, nil
}

// listPrealloc caps the slice capacity reserved up front by List.
const listPrealloc = 256

// List implements Cache.
func (s *SQLStore) List(ctx context.Context, limit int) ([]model.CatalogItem, error) {
	defer observeQuery(time.Now())
	if limit < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(listItemsSQL), limit)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.CatalogItem, 0, min(limit, listPrealloc))
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Count implements Cache.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countItemsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Close implements Cache.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner) (model.CatalogItem, error) {
	var catalogID, sourceID string
	var it model.CatalogItem
	if err := sc.Scan(&catalogID, &sourceID, &it.Answer, &it.Title, &it.ImageRef); err != nil {
		return model.CatalogItem{}, err
	}
	it.CatalogID = model.ID(catalogID)
	it.SourceItemID = model.ID(sourceID)
	return it, nil
}
