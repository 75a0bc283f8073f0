package sqlsink

import (
	"context"
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/sqlsink")

type Mode string

const (
	// ModeMerge updates rows matching on the key columns and inserts the rest.
	ModeMerge Mode = "merge"
	// ModeInsert inserts every row.
	ModeInsert Mode = "insert"
	// ModeStaging loads the rows into a temporary table and merges from it.
	ModeStaging Mode = "staging"
	// ModeUpdate merges from a temporary table but never inserts.
	ModeUpdate Mode = "update"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMerge:
		return ModeMerge, nil
	case ModeInsert:
		return ModeInsert, nil
	case ModeStaging:
		return ModeStaging, nil
	case ModeUpdate:
		return ModeUpdate, nil
	}
	return "", fmt.Errorf("unknown merge mode '%s'", s)
}

// Column is a target column. Key columns identify a row, two NULL keys
// are considered equal.
type Column struct {
	Name string
	Key  bool
}

type Sink struct {
	db   *sqlx.DB
	mode Mode
}

func New(db *sqlx.DB, mode Mode) Sink {
	if mode == "" {
		mode = ModeMerge
	}
	return Sink{db: db, mode: mode}
}

func (s Sink) Mode() Mode {
	return s.mode
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validate(table string, columns []Column) error {
	if !identifier.MatchString(table) {
		return fmt.Errorf("invalid table name '%s'", table)
	}
	if len(columns) == 0 {
		return fmt.Errorf("no columns given for '%s'", table)
	}
	for _, c := range columns {
		if !identifier.MatchString(c.Name) {
			return fmt.Errorf("invalid column name '%s'", c.Name)
		}
	}
	return nil
}

func split(columns []Column) (keys, rest []string) {
	for _, c := range columns {
		if c.Key {
			keys = append(keys, c.Name)
		} else {
			rest = append(rest, c.Name)
		}
	}
	return keys, rest
}

func names(columns []Column) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.Name
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Merge writes rows to table according to the sink's mode and returns the
// number of rows inserted or updated. It runs in a single transaction.
func (s Sink) Merge(ctx context.Context, table string, columns []Column, rows []map[string]any) (int, error) {
	ctx, span := tracer.Start(ctx, "Merge")
	defer span.End()

	span.SetAttributes(
		attribute.String("table", table),
		attribute.String("mode", string(s.mode)),
		attribute.Int("rows", len(rows)),
	)

	count, err := s.merge(ctx, table, columns, rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int("affected", count))
	return count, nil
}

func (s Sink) merge(ctx context.Context, table string, columns []Column, rows []map[string]any) (int, error) {
	err := validate(table, columns)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var count int
	switch s.mode {
	case ModeMerge:
		count, err = mergeRows(ctx, tx, table, columns, rows)
	case ModeInsert:
		count, err = insertRows(ctx, tx, table, columns, rows)
	case ModeStaging:
		count, err = mergeStaged(ctx, tx, table, columns, rows, true)
	case ModeUpdate:
		count, err = mergeStaged(ctx, tx, table, columns, rows, false)
	default:
		err = fmt.Errorf("unknown merge mode '%s'", s.mode)
	}
	if err != nil {
		return 0, err
	}

	err = tx.Commit()
	if err != nil {
		return 0, err
	}
	return count, nil
}

func values(row map[string]any, cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = row[c]
	}
	return out
}

func insertQuery(table string, cols []string) string {
	return fmt.Sprintf(
		"insert into %s (%s) values (%s)",
		table, strings.Join(cols, ", "), placeholders(len(cols)),
	)
}

func insertRows(ctx context.Context, tx *sqlx.Tx, table string, columns []Column, rows []map[string]any) (int, error) {
	cols := names(columns)
	query := tx.Rebind(insertQuery(table, cols))
	for _, row := range rows {
		_, err := tx.ExecContext(ctx, query, values(row, cols)...)
		if err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// keyFilter renders the key match for one row. NULL keys are matched with
// "is null" so that they compare equal.
func keyFilter(keys []string, row map[string]any) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	for _, k := range keys {
		v := row[k]
		if isNull(v) {
			clauses = append(clauses, k+" is null")
			continue
		}
		clauses = append(clauses, k+" = ?")
		args = append(args, v)
	}
	return strings.Join(clauses, " and "), args
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	valuer, ok := v.(driver.Valuer)
	if !ok {
		return false
	}
	dv, err := valuer.Value()
	return err == nil && dv == nil
}

func mergeRows(ctx context.Context, tx *sqlx.Tx, table string, columns []Column, rows []map[string]any) (int, error) {
	keys, rest := split(columns)
	if len(keys) == 0 {
		return 0, fmt.Errorf("merge into '%s' needs at least one key column", table)
	}
	cols := names(columns)
	insert := tx.Rebind(insertQuery(table, cols))

	sets := make([]string, len(rest))
	for i, c := range rest {
		sets[i] = c + " = ?"
	}

	count := 0
	for _, row := range rows {
		filter, filterArgs := keyFilter(keys, row)

		var matched int64
		if len(rest) > 0 {
			query := fmt.Sprintf("update %s set %s where %s", table, strings.Join(sets, ", "), filter)
			args := append(values(row, rest), filterArgs...)
			res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
			if err != nil {
				return 0, err
			}
			matched, err = res.RowsAffected()
			if err != nil {
				return 0, err
			}
		} else {
			query := fmt.Sprintf("select count(1) from %s where %s", table, filter)
			err := tx.GetContext(ctx, &matched, tx.Rebind(query), filterArgs...)
			if err != nil {
				return 0, err
			}
			if matched > 0 {
				continue
			}
		}

		if matched == 0 {
			_, err := tx.ExecContext(ctx, insert, values(row, cols)...)
			if err != nil {
				return 0, err
			}
		}
		count++
	}
	return count, nil
}

func nullSafeMatch(target, source string, keys []string) string {
	clauses := make([]string, len(keys))
	for i, k := range keys {
		clauses[i] = fmt.Sprintf(
			"(%[1]s.%[3]s = %[2]s.%[3]s or (%[1]s.%[3]s is null and %[2]s.%[3]s is null))",
			target, source, k,
		)
	}
	return strings.Join(clauses, " and ")
}

// mergeStaged loads rows into TMP_<table>, shaped like table, then merges
// from it. The staging table is dropped on success; on failure the rolled
// back transaction discards it.
func mergeStaged(ctx context.Context, tx *sqlx.Tx, table string, columns []Column, rows []map[string]any, insert bool) (int, error) {
	keys, rest := split(columns)
	if len(keys) == 0 {
		return 0, fmt.Errorf("merge into '%s' needs at least one key column", table)
	}
	cols := names(columns)
	staging := "TMP_" + table

	stmts := []string{
		fmt.Sprintf("drop table if exists %s", staging),
		fmt.Sprintf("create temp table %s as select * from %s where 1 = 0", staging, table),
	}
	for _, stmt := range stmts {
		_, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			return 0, err
		}
	}
	_, err := insertRows(ctx, tx, staging, columns, rows)
	if err != nil {
		return 0, err
	}

	count := 0
	match := nullSafeMatch(table, "S", keys)
	if len(rest) > 0 {
		sets := make([]string, len(rest))
		for i, c := range rest {
			sets[i] = fmt.Sprintf("%s = (select S.%s from %s S where %s)", c, c, staging, match)
		}
		query := fmt.Sprintf(
			"update %s set %s where exists (select 1 from %s S where %s)",
			table, strings.Join(sets, ", "), staging, match,
		)
		res, err := tx.ExecContext(ctx, query)
		if err != nil {
			return 0, err
		}
		updated, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		count += int(updated)
	}

	if insert {
		query := fmt.Sprintf(
			"insert into %s (%s) select %s from %s S where not exists (select 1 from %s T where %s)",
			table, strings.Join(cols, ", "), prefixed("S", cols), staging, table,
			nullSafeMatch("T", "S", keys),
		)
		res, err := tx.ExecContext(ctx, query)
		if err != nil {
			return 0, err
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		count += int(inserted)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf("drop table %s", staging))
	if err != nil {
		return 0, err
	}
	return count, nil
}

func prefixed(alias string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return strings.Join(out, ", ")
}
