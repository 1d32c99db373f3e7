// Package dialect implements the SqlGenerator polymorphism spec.md §4.D
// asks for: one small interface per target engine covering identifier
// quoting, placeholder style, boolean literals, string concatenation and
// pagination, plus a dialect matrix of concrete implementations.
//
// Grounded on machparse's format/formatter.go (a single-dialect
// PostgreSQL-shaped formatter) generalized to a table of dialects, and on
// sqldef's per-engine packages (postgres/mysql/mssql/sqlite) for the shape
// of what varies between engines.
package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// Name identifies one of the dialect matrix entries.
type Name string

const (
	PostgreSQL Name = "postgresql"
	MySQL      Name = "mysql"
	MariaDB    Name = "mariadb"
	SQLite     Name = "sqlite"
	SQLServer  Name = "sqlserver"
	Oracle     Name = "oracle"
	BigQuery   Name = "bigquery"
	Snowflake  Name = "snowflake"
	Redshift   Name = "redshift"
)

// SqlGenerator is the polymorphic dialect capability set spec.md §4.D
// requires. Defaults throughout this package match PostgreSQL; each
// concrete dialect overrides only what differs.
type SqlGenerator interface {
	Name() Name
	QuoteIdentifier(id string) string
	Placeholder(index int) string
	FuzzyOperator() string
	BoolLiteral(b bool) string
	StringConcat(parts []string) string
	LimitOffset(limit, offset *int) string
	// NeedsQuoting decides whether a table identifier needs quoting: only
	// when it contains non-word characters or collides with a reserved
	// word, per the identifier escaping policy in spec.md §4.D. Column
	// aliases are always quoted regardless (handled by the transpiler).
	NeedsQuoting(id string) bool
}

// base supplies the PostgreSQL-matching defaults every dialect embeds and
// selectively overrides.
type base struct{ reserved map[string]struct{} }

func (base) Placeholder(index int) string       { return "$" + strconv.Itoa(index) }
func (base) QuoteIdentifier(id string) string    { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
func (base) FuzzyOperator() string               { return "%" }
func (base) BoolLiteral(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
func (base) StringConcat(parts []string) string { return strings.Join(parts, " || ") }
func (base) LimitOffset(limit, offset *int) string {
	var sb strings.Builder
	if limit != nil {
		fmt.Fprintf(&sb, "LIMIT %d", *limit)
	}
	if offset != nil {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "OFFSET %d", *offset)
	}
	return sb.String()
}

func (b base) NeedsQuoting(id string) bool {
	if _, reserved := b.reserved[strings.ToLower(id)]; reserved {
		return true
	}
	for _, r := range id {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return true
		}
	}
	return false
}

var commonReserved = map[string]struct{}{
	"select": {}, "from": {}, "where": {}, "order": {}, "group": {}, "table": {},
	"user": {}, "column": {}, "index": {}, "key": {}, "primary": {}, "default": {},
}

// For resolves the concrete SqlGenerator for a dialect name.
func For(name Name) (SqlGenerator, error) {
	switch name {
	case PostgreSQL, "":
		return postgres{base{commonReserved}}, nil
	case MySQL:
		return mysql{base{commonReserved}}, nil
	case MariaDB:
		return maria{mysql{base{commonReserved}}}, nil
	case SQLite:
		return sqlite{base{commonReserved}}, nil
	case SQLServer:
		return sqlserver{base{commonReserved}}, nil
	case Oracle:
		return oracle{base{commonReserved}}, nil
	case BigQuery:
		return bigquery{base{commonReserved}}, nil
	case Snowflake:
		return snowflake{base{commonReserved}}, nil
	case Redshift:
		return redshift{base{commonReserved}}, nil
	}
	return nil, fmt.Errorf("dialect: unknown dialect %q", name)
}

// --- PostgreSQL: all defaults apply ---------------------------------------

type postgres struct{ base }

func (postgres) Name() Name { return PostgreSQL }

// --- MySQL / MariaDB -------------------------------------------------------

type mysql struct{ base }

func (mysql) Name() Name                   { return MySQL }
func (mysql) QuoteIdentifier(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
func (mysql) Placeholder(int) string       { return "?" }
func (mysql) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
func (mysql) StringConcat(parts []string) string {
	return "CONCAT(" + strings.Join(parts, ", ") + ")"
}

type maria struct{ mysql }

func (maria) Name() Name { return MariaDB }

// --- SQLite -----------------------------------------------------------------

type sqlite struct{ base }

func (sqlite) Name() Name             { return SQLite }
func (sqlite) Placeholder(int) string { return "?" }
func (sqlite) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// --- SQL Server ---------------------------------------------------------

type sqlserver struct{ base }

func (sqlserver) Name() Name                 { return SQLServer }
func (sqlserver) QuoteIdentifier(id string) string { return "[" + strings.ReplaceAll(id, "]", "]]") + "]" }
func (sqlserver) Placeholder(index int) string { return "@p" + strconv.Itoa(index) }
func (sqlserver) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
func (sqlserver) StringConcat(parts []string) string { return strings.Join(parts, " + ") }
func (sqlserver) LimitOffset(limit, offset *int) string {
	off := 0
	if offset != nil {
		off = *offset
	}
	if limit == nil {
		if offset == nil {
			return ""
		}
		return fmt.Sprintf("OFFSET %d ROWS", off)
	}
	return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", off, *limit)
}

// --- Oracle -----------------------------------------------------------------

type oracle struct{ base }

func (oracle) Name() Name                 { return Oracle }
func (oracle) Placeholder(index int) string { return ":" + strconv.Itoa(index) }
func (oracle) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
func (o oracle) LimitOffset(limit, offset *int) string {
	return sqlserverStyleFetch(limit, offset)
}

func sqlserverStyleFetch(limit, offset *int) string {
	off := 0
	if offset != nil {
		off = *offset
	}
	if limit == nil {
		if offset == nil {
			return ""
		}
		return fmt.Sprintf("OFFSET %d ROWS", off)
	}
	return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", off, *limit)
}

// --- BigQuery, Snowflake, Redshift: share PostgreSQL-like punctuation -----

type bigquery struct{ base }

func (bigquery) Name() Name                 { return BigQuery }
func (bigquery) QuoteIdentifier(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
func (bigquery) Placeholder(int) string     { return "?" }
func (bigquery) StringConcat(parts []string) string {
	return "CONCAT(" + strings.Join(parts, ", ") + ")"
}

type snowflake struct{ base }

func (snowflake) Name() Name { return Snowflake }

type redshift struct{ base }

func (redshift) Name() Name { return Redshift }
