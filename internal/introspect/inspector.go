package introspect

import (
	"context"
	"database/sql"
	"strings"
	"unicode"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huandu/go-sqlbuilder"
	"github.com/kenshaw/snaker"
	_ "github.com/lib/pq" // Postgres driver

	"github.com/kyleking/gen-console/internal/errors"
	"github.com/kyleking/gen-console/internal/logging"
	"github.com/kyleking/gen-console/internal/schema"
)

// Inspector lists the tables and columns of one database schema
type Inspector interface {
	Tables(ctx context.Context) ([]schema.SchemaTable, error)
	Close() error
}

// Opener connects an Inspector to the database named by a dbUrl
type Opener func(ctx context.Context, dbURL string) (Inspector, error)

// SQLInspector reads information_schema through database/sql
type SQLInspector struct {
	db     *sql.DB
	source Source
	logger *logging.Logger
}

// Open parses dbURL, connects and pings the database
func Open(ctx context.Context, dbURL string) (Inspector, error) {
	src, err := ParseDBURL(dbURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(src.Driver, src.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to open database")
	}

	db.SetMaxOpenConns(2)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, errors.Wrapf(err, errors.ErrTypeDatabase, "failed to connect to %s", src.Redacted).
			WithSuggestion("Check that the database is reachable and the credentials are correct")
	}

	return NewSQLInspector(db, src), nil
}

// NewSQLInspector wraps an open connection
func NewSQLInspector(db *sql.DB, src Source) *SQLInspector {
	return &SQLInspector{
		db:     db,
		source: src,
		logger: logging.GetLogger().WithFields(map[string]interface{}{
			"component": "introspect",
			"driver":    src.Driver,
			"schema":    src.Schema,
		}),
	}
}

type tableInfo struct {
	name    string
	comment string
}

type columnInfo struct {
	table      string
	name       string
	dataType   string
	length     sql.NullInt64
	isNullable string
	comment    string
}

// Tables returns every base table of the schema with its columns in
// ordinal order
func (i *SQLInspector) Tables(ctx context.Context) ([]schema.SchemaTable, error) {
	var (
		tables  []tableInfo
		columns []columnInfo
	)

	err := i.logger.Track("introspect schema", func() error {
		var err error

		tables, err = i.queryTables(ctx)
		if err != nil {
			return err
		}

		columns, err = i.queryColumns(ctx)

		return err
	})
	if err != nil {
		return nil, err
	}

	return assemble(tables, columns), nil
}

func (i *SQLInspector) queryTables(ctx context.Context) ([]tableInfo, error) {
	query, args := tablesQuery(i.source.Flavor, i.source.Schema)

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to list tables")
	}
	defer rows.Close()

	var tables []tableInfo

	for rows.Next() {
		var t tableInfo
		if err := rows.Scan(&t.name, &t.comment); err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to scan table")
		}

		tables = append(tables, t)
	}

	return tables, rows.Err()
}

func (i *SQLInspector) queryColumns(ctx context.Context) ([]columnInfo, error) {
	query, args := columnsQuery(i.source.Flavor, i.source.Schema)

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to list columns")
	}
	defer rows.Close()

	var columns []columnInfo

	for rows.Next() {
		var c columnInfo
		if err := rows.Scan(&c.table, &c.name, &c.dataType, &c.length, &c.isNullable, &c.comment); err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to scan column")
		}

		columns = append(columns, c)
	}

	return columns, rows.Err()
}

// Close releases the connection pool
func (i *SQLInspector) Close() error {
	return i.db.Close()
}

const pgRegclass = "(quote_ident(table_schema) || '.' || quote_ident(table_name))::regclass"

func tablesQuery(flavor sqlbuilder.Flavor, schemaName string) (string, []interface{}) {
	sb := sqlbuilder.NewSelectBuilder()

	comment := "COALESCE(table_comment, '')"
	if flavor == sqlbuilder.PostgreSQL {
		comment = "COALESCE(obj_description(" + pgRegclass + ", 'pg_class'), '')"
	}

	sb.Select("table_name", comment).
		From("information_schema.tables").
		Where(
			sb.Equal("table_schema", schemaName),
			sb.Equal("table_type", "BASE TABLE"),
		).
		OrderBy("table_name")

	return sb.BuildWithFlavor(flavor)
}

func columnsQuery(flavor sqlbuilder.Flavor, schemaName string) (string, []interface{}) {
	sb := sqlbuilder.NewSelectBuilder()

	comment := "COALESCE(column_comment, '')"
	if flavor == sqlbuilder.PostgreSQL {
		comment = "COALESCE(col_description(" + pgRegclass + ", ordinal_position), '')"
	}

	sb.Select("table_name", "column_name", "data_type", "character_maximum_length", "is_nullable", comment).
		From("information_schema.columns").
		Where(sb.Equal("table_schema", schemaName)).
		OrderBy("table_name", "ordinal_position")

	return sb.BuildWithFlavor(flavor)
}

// assemble groups columns under their tables. Columns of tables that were
// not listed (views) are dropped.
func assemble(tables []tableInfo, columns []columnInfo) []schema.SchemaTable {
	out := make([]schema.SchemaTable, 0, len(tables))
	index := make(map[string]int, len(tables))

	for _, t := range tables {
		index[t.name] = len(out)
		out = append(out, schema.SchemaTable{
			Name:    t.name,
			Comment: t.comment,
			Columns: []schema.SchemaColumn{},
		})
	}

	for _, c := range columns {
		idx, ok := index[c.table]
		if !ok {
			continue
		}

		var length *int64
		if c.length.Valid {
			n := c.length.Int64
			length = &n
		}

		out[idx].Columns = append(out[idx].Columns, schema.SchemaColumn{
			CamelCaseName: CamelCase(c.name),
			Name:          c.name,
			Type:          strings.ToLower(c.dataType),
			IsNullable:    strings.EqualFold(c.isNullable, "YES"),
			Comment:       c.comment,
			Chinese:       Label(c.comment),
			Length:        length,
		})
	}

	return out
}

// CamelCase turns a snake_case column name into a lowerCamel field name
func CamelCase(name string) string {
	return snaker.ForceLowerCamelIdentifier(name)
}

// Label is the display label derived from a column comment: its first
// clause, cut at the first punctuation mark or line break
func Label(comment string) string {
	comment = strings.TrimSpace(comment)

	end := strings.IndexFunc(comment, func(r rune) bool {
		switch r {
		case ',', '，', ';', '；', ':', '：', '(', '（', '。':
			return true
		}

		return unicode.IsControl(r)
	})
	if end >= 0 {
		comment = comment[:end]
	}

	return strings.TrimSpace(comment)
}
