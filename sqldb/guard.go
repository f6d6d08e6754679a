package sqldb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// AccessRequest is the input of an AccessPolicy decision.
type AccessRequest struct {
	Kind    StatementKind `json:"statement_kind"`
	Tables  []string      `json:"tables"`
	Allowed []string      `json:"allowed_tables"`
}

// AccessDecision is the output of an AccessPolicy decision.
type AccessDecision struct {
	Allow   bool     `json:"allow"`
	Reasons []string `json:"reasons"`
}

// AccessPolicy decides whether an analyzed statement may run.
type AccessPolicy interface {
	Decide(ctx context.Context, req AccessRequest) (AccessDecision, error)
}

// AllowListPolicy permits read statements whose tables are all allow-listed.
type AllowListPolicy struct{}

// Decide implements AccessPolicy.
func (AllowListPolicy) Decide(_ context.Context, req AccessRequest) (AccessDecision, error) {
	var reasons []string
	if req.Kind != KindRead {
		reasons = append(reasons, "statement is not a read query")
	}
	allowed := make(map[string]bool, len(req.Allowed))
	for _, t := range req.Allowed {
		allowed[NormalizeTable(t)] = true
	}
	for _, t := range req.Tables {
		if !allowed[t] {
			reasons = append(reasons, "table "+t+" is not allow-listed")
		}
	}
	return AccessDecision{Allow: len(reasons) == 0, Reasons: reasons}, nil
}

// Guard vets generated SQL before it reaches the database.
type Guard struct {
	policy AccessPolicy
	logger *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithPolicy sets the access policy.
func WithPolicy(policy AccessPolicy) GuardOption {
	return func(g *Guard) {
		g.policy = policy
	}
}

// WithGuardLogger sets the logger.
func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

// NewGuard creates a Guard. Without WithPolicy it uses AllowListPolicy.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{
		policy: AllowListPolicy{},
		logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check analyzes query and asks the policy whether it may run against allow.
// Rejections wrap ErrMultipleStatements, ErrReadOnly or ErrTableNotAllowed;
// a relation the analyzer cannot name is rejected as ErrUnresolvedTable.
func (g *Guard) Check(ctx context.Context, query string, allow []string) (*Statement, error) {
	stmt, err := Analyze(query)
	if err != nil {
		return nil, err
	}

	normalized := make([]string, 0, len(allow))
	for _, t := range allow {
		normalized = append(normalized, NormalizeTable(t))
	}

	decision, err := g.policy.Decide(ctx, AccessRequest{
		Kind:    stmt.Kind,
		Tables:  stmt.Tables,
		Allowed: normalized,
	})
	if err != nil {
		return nil, fmt.Errorf("access policy failed: %w", err)
	}
	if decision.Allow {
		return stmt, nil
	}

	g.logger.Warn("Statement rejected",
		"kind", stmt.Kind,
		"tables", stmt.Tables,
		"reasons", decision.Reasons)

	if stmt.Kind != KindRead {
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, strings.Join(decision.Reasons, "; "))
	}
	return nil, fmt.Errorf("%w: %s", ErrTableNotAllowed, strings.Join(decision.Reasons, "; "))
}
