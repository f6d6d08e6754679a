// Package policy evaluates SQL access decisions with Open Policy Agent.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/aanchal1903/BusinessOps-Chatbot/sqldb"
	"github.com/open-policy-agent/opa/rego"
)

// DecisionQuery is the rule every table access module must define.
const DecisionQuery = "data.businessops.sql.decision"

// DefaultTableAccessPolicy permits read statements over allow-listed tables.
const DefaultTableAccessPolicy = `
package businessops.sql

default allow = false

allowed[t] {
	t := input.allowed_tables[_]
}

reasons["statement is not a read query"] {
	input.statement_kind != "read"
}

reasons[msg] {
	t := input.tables[_]
	not allowed[t]
	msg := sprintf("table %s is not allow-listed", [t])
}

allow {
	input.statement_kind == "read"
	count(reasons) == 0
}

decision = {"allow": allow, "reasons": reasons}
`

// TableAccess is an sqldb.AccessPolicy backed by a prepared rego query.
type TableAccess struct {
	query rego.PreparedEvalQuery
}

// NewTableAccess compiles a rego module defining businessops.sql.decision.
func NewTableAccess(ctx context.Context, module string) (*TableAccess, error) {
	r := rego.New(
		rego.Query(DecisionQuery),
		rego.Module("businessops_sql.rego", module),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &TableAccess{query: query}, nil
}

// LoadTableAccess compiles the module at path, or the default module when
// path is empty.
func LoadTableAccess(ctx context.Context, path string) (*TableAccess, error) {
	if path == "" {
		return NewTableAccess(ctx, DefaultTableAccessPolicy)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}
	return NewTableAccess(ctx, string(src))
}

// Decide implements sqldb.AccessPolicy. An undefined decision denies.
func (p *TableAccess) Decide(ctx context.Context, req sqldb.AccessRequest) (sqldb.AccessDecision, error) {
	if req.Tables == nil {
		req.Tables = []string{}
	}
	if req.Allowed == nil {
		req.Allowed = []string{}
	}

	results, err := p.query.Eval(ctx, rego.EvalInput(req))
	if err != nil {
		return sqldb.AccessDecision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return sqldb.AccessDecision{Reasons: []string{"policy returned no decision"}}, nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return sqldb.AccessDecision{}, fmt.Errorf("unexpected decision type %T", results[0].Expressions[0].Value)
	}

	decision := sqldb.AccessDecision{}
	decision.Allow, _ = obj["allow"].(bool)
	if raw, ok := obj["reasons"].([]interface{}); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				decision.Reasons = append(decision.Reasons, s)
			}
		}
	}
	return decision, nil
}

var _ sqldb.AccessPolicy = (*TableAccess)(nil)
