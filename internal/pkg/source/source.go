package source

import (
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Row is one source table row with every value normalized to a string.
// The scheduling plugin stores nearly everything as text anyway, and
// string access keeps the multi-candidate column resolution simple.
type Row map[string]string

// Cond is one equality condition for QueryValue
type Cond struct {
	Column string
	Value  interface{}
}

// Source is the generic relational query surface the sync core reads the
// scheduling plugin's tables through. The core never assumes a fixed
// schema; everything goes through table/column introspection.
type Source interface {
	// ListTablesMatching returns table names matching a SQL LIKE pattern
	ListTablesMatching(pattern string) ([]string, error)
	// ListColumns returns the column names of a table
	ListColumns(table string) ([]string, error)
	// QueryRowByID returns the first row where column equals id, or nil
	QueryRowByID(table, column string, id uint) (Row, error)
	// QueryIDsGreaterThan returns up to limit ids above the watermark, ascending
	QueryIDsGreaterThan(table, column string, watermark uint, limit int) ([]uint, error)
	// QueryValue returns one column value under equality conditions, or ""
	QueryValue(table, selectColumn string, conds ...Cond) (string, error)
}

// mysqlSource implements Source against the plugin's MySQL database
type mysqlSource struct {
	db *gorm.DB
}

// NewMySQLSource creates a Source over an existing GORM handle
func NewMySQLSource(db *gorm.DB) Source {
	return &mysqlSource{db: db}
}

// quoteIdent backtick-quotes an identifier that came out of SHOW TABLES /
// SHOW COLUMNS. Identifiers are never taken from user input, but they do
// come from a third-party schema we don't control.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "") + "`"
}

func (s *mysqlSource) ListTablesMatching(pattern string) ([]string, error) {
	rows, err := s.db.Raw("SHOW TABLES LIKE ?", pattern).Rows()
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (s *mysqlSource) ListColumns(table string) ([]string, error) {
	rows, err := s.db.Raw("SHOW COLUMNS FROM " + quoteIdent(table)).Rows()
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var names []string
	for rows.Next() {
		// SHOW COLUMNS yields Field, Type, Null, Key, Default, Extra;
		// only Field matters here.
		values := make([]sql.RawBytes, len(cols))
		scanArgs := make([]interface{}, len(cols))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}
		names = append(names, string(values[0]))
	}
	return names, rows.Err()
}

func (s *mysqlSource) QueryRowByID(table, column string, id uint) (Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1", quoteIdent(table), quoteIdent(column))
	rows, err := s.db.Raw(query, id).Rows()
	if err != nil {
		return nil, fmt.Errorf("query row %s.%s=%d: %w", table, column, id, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, rows.Err()
	}

	values := make([]sql.RawBytes, len(cols))
	scanArgs := make([]interface{}, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	if err := rows.Scan(scanArgs...); err != nil {
		return nil, err
	}

	row := make(Row, len(cols))
	for i, col := range cols {
		row[col] = string(values[i])
	}
	return row, nil
}

func (s *mysqlSource) QueryIDsGreaterThan(table, column string, watermark uint, limit int) ([]uint, error) {
	if limit <= 0 {
		limit = 1
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s > ? ORDER BY %s ASC LIMIT %d",
		quoteIdent(column), quoteIdent(table), quoteIdent(column), quoteIdent(column), limit)

	var ids []uint
	if err := s.db.Raw(query, watermark).Scan(&ids).Error; err != nil {
		return nil, fmt.Errorf("query ids %s.%s>%d: %w", table, column, watermark, err)
	}
	return ids, nil
}

func (s *mysqlSource) QueryValue(table, selectColumn string, conds ...Cond) (string, error) {
	var sb strings.Builder
	args := make([]interface{}, 0, len(conds))

	sb.WriteString("SELECT " + quoteIdent(selectColumn) + " FROM " + quoteIdent(table))
	for i, c := range conds {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(quoteIdent(c.Column) + " = ?")
		args = append(args, c.Value)
	}
	sb.WriteString(" LIMIT 1")

	var value sql.NullString
	row := s.db.Raw(sb.String(), args...).Row()
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("query value %s.%s: %w", table, selectColumn, err)
	}
	return value.String, nil
}
