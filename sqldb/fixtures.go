package sqldb

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

// FixtureTables lists the seeded tables in foreign-key order.
var FixtureTables = []string{"company", "users", "add_profile"}

var fixtureDDL = map[string]string{
	"company": `CREATE TABLE "company" (
		"id" INTEGER PRIMARY KEY,
		"company_name" TEXT NOT NULL,
		"company_category" TEXT,
		"company_turnover" TEXT,
		"email" TEXT,
		"number_of_employee" INTEGER,
		"phone" TEXT,
		"company_address" TEXT,
		"msme_registration_no" TEXT,
		"gst_registration_no" TEXT,
		"linkedin_url" TEXT,
		"company_website" TEXT,
		"about_company" TEXT,
		"is_active" INTEGER NOT NULL DEFAULT 1,
		"plan_id" INTEGER,
		"expire_date" TEXT
	)`,
	"users": `CREATE TABLE "users" (
		"id" INTEGER PRIMARY KEY,
		"company_id" INTEGER REFERENCES "company"("id"),
		"full_name" TEXT NOT NULL,
		"email" TEXT,
		"password" TEXT,
		"phone" TEXT,
		"user_type" TEXT,
		"is_active" INTEGER NOT NULL DEFAULT 1,
		"department" TEXT,
		"permission" TEXT,
		"created_at" TEXT,
		"updated_at" TEXT
	)`,
	"add_profile": `CREATE TABLE "add_profile" (
		"id" INTEGER PRIMARY KEY,
		"user_id" INTEGER REFERENCES "users"("id"),
		"company_id" INTEGER REFERENCES "company"("id"),
		"profile_name" TEXT NOT NULL,
		"job_title" TEXT,
		"professional_summary" TEXT,
		"key_skill" TEXT,
		"experience" INTEGER,
		"certificate" TEXT,
		"charge_rate" REAL,
		"charge_rate_dollar" REAL,
		"charge_rate_inr" REAL,
		"education" TEXT,
		"projects" TEXT,
		"employee_type" TEXT,
		"availability" TEXT,
		"mobile" TEXT,
		"email" TEXT,
		"location" TEXT,
		"gender" TEXT,
		"country" TEXT,
		"state" TEXT,
		"city" TEXT,
		"view_count" INTEGER DEFAULT 0,
		"created_at" TEXT,
		"updated_at" TEXT
	)`,
}

// FixtureTable is one table of the demo data set.
type FixtureTable struct {
	Columns []string `yaml:"columns"`
	Rows    [][]any  `yaml:"rows"`
}

// LoadFixtures decodes the embedded demo data set.
func LoadFixtures() (map[string]FixtureTable, error) {
	var tables map[string]FixtureTable
	if err := yaml.Unmarshal(fixturesYAML, &tables); err != nil {
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}
	for _, name := range FixtureTables {
		t, ok := tables[name]
		if !ok {
			return nil, fmt.Errorf("fixture table %s missing", name)
		}
		for i, row := range t.Rows {
			if len(row) != len(t.Columns) {
				return nil, fmt.Errorf("fixture %s row %d has %d values, want %d", name, i+1, len(row), len(t.Columns))
			}
		}
	}
	return tables, nil
}

// Seed drops and recreates the demo tables and loads the fixture rows.
func Seed(ctx context.Context, db Database) error {
	tables, err := LoadFixtures()
	if err != nil {
		return err
	}

	for i := len(FixtureTables) - 1; i >= 0; i-- {
		if err := db.Exec(ctx, "DROP TABLE IF EXISTS "+quoteIdent(FixtureTables[i])); err != nil {
			return fmt.Errorf("failed to drop %s: %w", FixtureTables[i], err)
		}
	}

	for _, name := range FixtureTables {
		ddl := fixtureDDL[name]
		if db.Dialect() == DialectPostgres {
			ddl = strings.ReplaceAll(ddl, " REAL", " DOUBLE PRECISION")
		}
		if err := db.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}

		t := tables[name]
		cols := make([]string, len(t.Columns))
		marks := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = quoteIdent(c)
			marks[i] = placeholder(db.Dialect(), i+1)
		}
		insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(name), strings.Join(cols, ", "), strings.Join(marks, ", "))

		for i, row := range t.Rows {
			if err := db.Exec(ctx, insert, row...); err != nil {
				return fmt.Errorf("failed to insert %s row %d: %w", name, i+1, err)
			}
		}
	}
	return nil
}
