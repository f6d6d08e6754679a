// Package matcher is the unstructured pipeline: candidate profiles are
// embedded into a vector store and the closest ones are ranked against a
// requirement by the language model.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aanchal1903/BusinessOps-Chatbot/embedding"
	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
	"github.com/aanchal1903/BusinessOps-Chatbot/prompts"
	"github.com/aanchal1903/BusinessOps-Chatbot/rag/reader"
	"github.com/aanchal1903/BusinessOps-Chatbot/rag/store"
)

// DefaultTopK is the number of profiles handed to the model.
const DefaultTopK = 3

var (
	// ErrEmptyRequirement is returned for a blank requirement.
	ErrEmptyRequirement = errors.New("requirement is empty")
	// ErrEmptyIndex is returned when matching before any profile was indexed.
	ErrEmptyIndex = errors.New("no candidate profiles indexed")
)

// Candidate is a retrieved profile.
type Candidate struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	JobTitle string  `json:"job_title"`
	Score    float64 `json:"score"`
	Text     string  `json:"-"`
}

// Recommendation is the model's ranking of the retrieved candidates.
type Recommendation struct {
	Requirement string      `json:"requirement"`
	Answer      string      `json:"answer"`
	Candidates  []Candidate `json:"candidates"`
}

// Matcher indexes and matches candidate profiles.
type Matcher struct {
	embedder  embedding.EmbeddingModel
	store     store.VectorStore
	llm       llm.LLM
	extractor reader.TextExtractor
	prompt    prompts.BasePromptTemplate
	topK      int
	logger    *slog.Logger
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithMatchPrompt overrides the recommendation prompt. It must accept
// {requirement} and {candidates}.
func WithMatchPrompt(prompt prompts.BasePromptTemplate) MatcherOption {
	return func(m *Matcher) {
		m.prompt = prompt
	}
}

// WithTopK sets the number of retrieved profiles.
func WithTopK(k int) MatcherOption {
	return func(m *Matcher) {
		if k > 0 {
			m.topK = k
		}
	}
}

// WithExtractor sets the job description reader used by MatchDocument.
func WithExtractor(extractor reader.TextExtractor) MatcherOption {
	return func(m *Matcher) {
		m.extractor = extractor
	}
}

// WithMatcherLogger sets the logger.
func WithMatcherLogger(logger *slog.Logger) MatcherOption {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// NewMatcher creates a new Matcher.
func NewMatcher(embedder embedding.EmbeddingModel, vectorStore store.VectorStore, llmInstance llm.LLM, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		embedder:  embedder,
		store:     vectorStore,
		llm:       llmInstance,
		extractor: reader.NewDocumentReader(),
		prompt:    prompts.DefaultCandidateMatchPrompt,
		topK:      DefaultTopK,
		logger:    slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Index embeds profiles and upserts them into the store keyed by profile ID.
// It returns the number of indexed profiles.
func (m *Matcher) Index(ctx context.Context, profiles []reader.Profile) (int, error) {
	if len(profiles) == 0 {
		return 0, nil
	}

	texts := make([]string, len(profiles))
	for i, p := range profiles {
		texts[i] = reader.BuildProfileText(p)
	}

	vectors, err := embedding.EmbedAll(ctx, m.embedder, texts, func(done, total int) {
		m.logger.Debug("embedding profiles", "done", done, "total", total)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to embed profiles: %w", err)
	}
	if len(vectors) != len(profiles) {
		return 0, fmt.Errorf("embedding model returned %d vectors for %d profiles", len(vectors), len(profiles))
	}

	records := make([]store.Record, len(profiles))
	for i, p := range profiles {
		records[i] = store.Record{
			ID:   "profile-" + p.ID,
			Text: texts[i],
			Metadata: map[string]string{
				"candidate_id": p.ID,
				"name":         p.Name,
				"job_title":    p.JobTitle,
				"department":   p.Department,
				"location":     p.Location,
			},
			Embedding: vectors[i],
		}
	}

	if _, err := m.store.Add(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to store profiles: %w", err)
	}
	m.logger.Info("indexed candidate profiles", "count", len(records))
	return len(records), nil
}

// Retrieve returns the profiles closest to the requirement, best first.
func (m *Matcher) Retrieve(ctx context.Context, requirement string) ([]Candidate, error) {
	requirement = strings.TrimSpace(requirement)
	if requirement == "" {
		return nil, ErrEmptyRequirement
	}
	if m.store.Count() == 0 {
		return nil, ErrEmptyIndex
	}

	vec, err := m.embedder.GetQueryEmbedding(ctx, requirement)
	if err != nil {
		return nil, fmt.Errorf("failed to embed requirement: %w", err)
	}

	matches, err := m.store.Query(ctx, store.Query{Embedding: vec, TopK: m.topK})
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}

	candidates := make([]Candidate, len(matches))
	for i, match := range matches {
		candidates[i] = Candidate{
			ID:       match.Metadata["candidate_id"],
			Name:     match.Metadata["name"],
			JobTitle: match.Metadata["job_title"],
			Score:    match.Score,
			Text:     match.Text,
		}
	}
	return candidates, nil
}

// Match retrieves the closest profiles and asks the model to recommend one.
func (m *Matcher) Match(ctx context.Context, requirement string) (*Recommendation, error) {
	candidates, err := m.Retrieve(ctx, requirement)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	answer, err := m.llm.Chat(ctx, m.prompt.FormatMessages(map[string]string{
		"requirement": strings.TrimSpace(requirement),
		"candidates":  strings.Join(texts, "\n\n"),
	}))
	if err != nil {
		return nil, err
	}

	m.logger.Info("matched candidates", "retrieved", len(candidates))
	return &Recommendation{
		Requirement: strings.TrimSpace(requirement),
		Answer:      strings.TrimSpace(answer),
		Candidates:  candidates,
	}, nil
}

// MatchDocument matches against the text of a job description file. The
// document is read before any embedding or model call, so a bad path fails
// with reader.ErrDocumentNotFound without side effects. A non-empty question
// is appended to the document text as additional notes.
func (m *Matcher) MatchDocument(ctx context.Context, path, question string) (*Recommendation, error) {
	text, err := m.extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	if q := strings.TrimSpace(question); q != "" {
		text += "\n\nAdditional notes: " + q
	}
	return m.Match(ctx, text)
}
