package sqlchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aanchal1903/BusinessOps-Chatbot/memory"
	"github.com/google/uuid"
)

// Stage is a state of the chain.
type Stage string

const (
	StageGeneratingSQL Stage = "generating_sql"
	StageExecuting     Stage = "executing"
	StageSynthesizing  Stage = "synthesizing"
	StageDone          Stage = "done"
)

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// ChainError is a terminal failure of one stage.
type ChainError struct {
	Stage Stage
	Err   error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// StageObserver receives the duration and outcome of every stage run.
type StageObserver interface {
	ObserveStage(stage string, elapsed time.Duration, err error)
}

// Request is the input of a chain run.
type Request struct {
	Question  string
	AllowList []string
	// History is the recent conversation, oldest first.
	History  []memory.ChatTurn
	Language string
	TopK     int
}

// Result is the output of a completed chain run.
type Result struct {
	Query     string `json:"query"`
	SQL       string `json:"sql_query"`
	Output    string `json:"output"`
	MessageID string `json:"message_id"`
	Rows      int    `json:"rows"`
	Stage     Stage  `json:"stage"`
}

// Chain runs generation, execution and synthesis strictly in order. A stage
// failure ends the run; nothing is retried here.
type Chain struct {
	generator   *Generator
	executor    *Executor
	synthesizer *Synthesizer
	history     *memory.HistoryWindow
	observer    StageObserver
	logger      *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithHistoryWindow sets how much conversation history reaches the prompts.
func WithHistoryWindow(w *memory.HistoryWindow) ChainOption {
	return func(c *Chain) {
		c.history = w
	}
}

// WithStageObserver sets the stage observer.
func WithStageObserver(o StageObserver) ChainOption {
	return func(c *Chain) {
		c.observer = o
	}
}

// WithChainLogger sets the logger.
func WithChainLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) {
		c.logger = logger
	}
}

// NewChain creates a new Chain.
func NewChain(generator *Generator, executor *Executor, synthesizer *Synthesizer, opts ...ChainOption) *Chain {
	c := &Chain{
		generator:   generator,
		executor:    executor,
		synthesizer: synthesizer,
		history:     memory.NewHistoryWindow(),
		logger:      slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the chain. Errors are *ChainError naming the failed stage.
func (c *Chain) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, &ChainError{Stage: StageGeneratingSQL, Err: ErrEmptyQuestion}
	}

	history := c.history.Format(req.History)
	res := &Result{Query: req.Question, Stage: StageGeneratingSQL}
	var exec *Execution

	for res.Stage != StageDone {
		stage := res.Stage
		start := time.Now()

		var (
			next Stage
			err  error
		)
		switch stage {
		case StageGeneratingSQL:
			next = StageExecuting
			res.SQL, err = c.generator.Generate(ctx, GenerateInput{
				Question:  req.Question,
				AllowList: req.AllowList,
				History:   history,
				TopK:      req.TopK,
			})
		case StageExecuting:
			next = StageSynthesizing
			exec, err = c.executor.Execute(ctx, res.SQL, req.AllowList)
			if err == nil {
				res.Rows = len(exec.Result.Rows)
			}
		case StageSynthesizing:
			next = StageDone
			res.Output, err = c.synthesizer.Synthesize(ctx, SynthesisInput{
				Question: req.Question,
				SQLQuery: res.SQL,
				Result:   exec.Text,
				History:  history,
				Language: req.Language,
			})
		default:
			err = fmt.Errorf("unknown stage %q", stage)
		}

		elapsed := time.Since(start)
		if c.observer != nil {
			c.observer.ObserveStage(string(stage), elapsed, err)
		}
		if err != nil {
			c.logger.Error("Structured chain failed",
				"stage", stage,
				"elapsed", elapsed,
				"error", err)
			return nil, &ChainError{Stage: stage, Err: err}
		}
		c.logger.Debug("Stage completed", "stage", stage, "elapsed", elapsed)
		res.Stage = next
	}

	res.MessageID = uuid.NewString()
	c.logger.Info("Structured chain completed", "rows", res.Rows, "message_id", res.MessageID)
	return res, nil
}
