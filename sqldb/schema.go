package sqldb

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// DefaultSampleRows is the number of example rows rendered per table.
const DefaultSampleRows = 3

// SchemaInspector renders the schema description handed to the SQL generator.
// Column metadata is cached per table; sample rows are read fresh.
type SchemaInspector struct {
	db         Database
	sampleRows int
	redacted   map[string]bool

	// cache stores columns keyed by lower-cased table name
	cache map[string][]Column
	// mu protects concurrent access to the cache
	mu sync.RWMutex
}

// SchemaInspectorOption configures a SchemaInspector.
type SchemaInspectorOption func(*SchemaInspector)

// WithSampleRows sets how many example rows are shown per table. Zero
// disables samples.
func WithSampleRows(n int) SchemaInspectorOption {
	return func(si *SchemaInspector) {
		si.sampleRows = n
	}
}

// WithRedactedColumns masks the sample values of the named columns.
func WithRedactedColumns(cols ...string) SchemaInspectorOption {
	return func(si *SchemaInspector) {
		for _, c := range cols {
			si.redacted[strings.ToLower(c)] = true
		}
	}
}

// NewSchemaInspector creates a new SchemaInspector. Password columns are
// redacted by default.
func NewSchemaInspector(db Database, opts ...SchemaInspectorOption) *SchemaInspector {
	si := &SchemaInspector{
		db:         db,
		sampleRows: DefaultSampleRows,
		redacted:   map[string]bool{"password": true},
		cache:      make(map[string][]Column),
	}
	for _, opt := range opts {
		opt(si)
	}
	return si
}

// Columns returns the cached columns of table, loading them on first use.
func (si *SchemaInspector) Columns(ctx context.Context, table string) ([]Column, error) {
	key := strings.ToLower(table)

	si.mu.RLock()
	if cols, ok := si.cache[key]; ok {
		si.mu.RUnlock()
		return cols, nil
	}
	si.mu.RUnlock()

	cols, err := si.db.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	si.mu.Lock()
	si.cache[key] = cols
	si.mu.Unlock()

	return cols, nil
}

// ClearCache drops all cached column metadata.
func (si *SchemaInspector) ClearCache() {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.cache = make(map[string][]Column)
}

// Describe renders CREATE TABLE statements plus sample rows for every table
// of allow, in allow-list order. Tables outside allow are never read.
func (si *SchemaInspector) Describe(ctx context.Context, allow []string) (string, error) {
	if len(allow) == 0 {
		return "", fmt.Errorf("%w: empty allow-list", ErrTableNotAllowed)
	}

	blocks := make([]string, 0, len(allow))
	for _, table := range allow {
		cols, err := si.Columns(ctx, table)
		if err != nil {
			return "", err
		}
		block := renderCreateTable(table, cols)

		if si.sampleRows > 0 {
			samples, err := si.samples(ctx, table, cols)
			if err != nil {
				return "", fmt.Errorf("failed to sample %s: %w", table, err)
			}
			block += "\n\n" + samples
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n"), nil
}

func renderCreateTable(table string, cols []Column) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE " + quoteIdent(table) + " (\n")
	for i, c := range cols {
		b.WriteString("\t" + quoteIdent(c.Name) + " " + c.Type)
		if c.NotNull {
			b.WriteString(" NOT NULL")
		}
		if c.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
		if i < len(cols)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(")")
	return b.String()
}

func (si *SchemaInspector) samples(ctx context.Context, table string, cols []Column) (string, error) {
	names := make([]string, len(cols))
	quoted := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		quoted[i] = quoteIdent(c.Name)
	}

	res, err := si.db.Query(ctx, fmt.Sprintf("SELECT %s FROM %s LIMIT %d",
		strings.Join(quoted, ", "), quoteIdent(table), si.sampleRows))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "/*\n%d rows from %s table:\n%s", len(res.Rows), table, strings.Join(names, "\t"))
	for _, row := range res.Rows {
		b.WriteByte('\n')
		for i, v := range row {
			if i > 0 {
				b.WriteByte('\t')
			}
			if si.redacted[strings.ToLower(names[i])] {
				b.WriteString("***")
				continue
			}
			b.WriteString(truncateValue(FormatValue(v), 100))
		}
	}
	b.WriteString("\n*/")
	return b.String(), nil
}

func truncateValue(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
