package rag

import (
	"context"

	"github.com/aanchal1903/BusinessOps-Chatbot/matcher"
	"github.com/aanchal1903/BusinessOps-Chatbot/router"
	"github.com/aanchal1903/BusinessOps-Chatbot/sqlchain"
)

// Router classifies a question into a pipeline.
type Router interface {
	RouteQuery(ctx context.Context, question string) (router.Decision, error)
}

// StructuredChain answers questions over the relational store.
type StructuredChain interface {
	Run(ctx context.Context, req sqlchain.Request) (*sqlchain.Result, error)
}

// CandidateMatcher answers candidate recommendation questions.
type CandidateMatcher interface {
	Match(ctx context.Context, requirement string) (*matcher.Recommendation, error)
	MatchDocument(ctx context.Context, path, question string) (*matcher.Recommendation, error)
}

// Observer receives per-query routing outcomes.
type Observer interface {
	ObserveRoute(route string)
	QueryStarted() func()
}

var (
	_ Router           = (*router.QueryRouter)(nil)
	_ StructuredChain  = (*sqlchain.Chain)(nil)
	_ CandidateMatcher = (*matcher.Matcher)(nil)
)
