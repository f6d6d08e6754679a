package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aanchal1903/BusinessOps-Chatbot/rag"
	"github.com/aanchal1903/BusinessOps-Chatbot/rag/reader"
	"github.com/aanchal1903/BusinessOps-Chatbot/router"
	"github.com/pterm/pterm"
)

const (
	queryPrompt    = "Enter your query (or 'exit' to quit, 'jd' to provide a job description path): "
	documentPrompt = "Enter the path to the job description PDF: "
	jdQueryPrompt  = "Enter your query to match with this job description: "
)

var (
	labelStyle = pterm.NewStyle(pterm.FgLightCyan, pterm.Bold)
	errorStyle = pterm.NewStyle(pterm.FgRed)
)

// queryProcessor answers one query.
type queryProcessor interface {
	ProcessQuery(ctx context.Context, q rag.Query) *rag.Response
}

// Shell is the interactive chat loop. All turns of one Shell share a chat.
type Shell struct {
	queries queryProcessor
	in      *bufio.Scanner
	out     io.Writer
	userID  string
	chatID  string
}

// NewShell creates a Shell reading from in and writing to out. An empty
// userID keeps turns out of the chat store.
func NewShell(queries queryProcessor, in io.Reader, out io.Writer, userID string) *Shell {
	return &Shell{
		queries: queries,
		in:      bufio.NewScanner(in),
		out:     out,
		userID:  userID,
	}
}

// Run reads queries until "exit" or end of input.
func (s *Shell) Run(ctx context.Context) error {
loop:
	for {
		input, ok := s.prompt(queryPrompt)
		if !ok {
			break
		}
		if input == "" {
			continue
		}

		q := rag.Query{Question: input, UserID: s.userID, ChatID: s.chatID}
		switch strings.ToLower(input) {
		case "exit":
			fmt.Fprintln(s.out, "Exiting application...")
			return nil
		case "jd":
			path, ok := s.prompt(documentPrompt)
			if !ok {
				break loop
			}
			if err := reader.CheckDocument(path); err != nil {
				fmt.Fprintln(s.out, errorStyle.Sprintf("Error: File not found at %s", path))
				continue
			}
			question, ok := s.prompt(jdQueryPrompt)
			if !ok {
				break loop
			}
			q.Question = question
			q.DocumentPath = path
		}

		resp := s.queries.ProcessQuery(ctx, q)
		if resp.ChatID != "" {
			s.chatID = resp.ChatID
		}
		printResponse(s.out, resp)
	}
	if err := s.in.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	fmt.Fprintln(s.out, "Exiting application...")
	return nil
}

func (s *Shell) prompt(text string) (string, bool) {
	fmt.Fprint(s.out, "\n"+text)
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

// printResponse writes a response in the chat transcript layout.
func printResponse(out io.Writer, resp *rag.Response) {
	if resp.Failed() {
		fmt.Fprintln(out, errorStyle.Sprint(resp.Answer))
		return
	}

	fmt.Fprintf(out, "%s %s\n", labelStyle.Sprint("Router decision:"), resp.ChainType)
	fmt.Fprintln(out)
	fmt.Fprintln(out, labelStyle.Sprint("Result:"))
	fmt.Fprintf(out, "Chain used: %s\n", resp.ChainType)
	if resp.ChainType == router.Structured {
		fmt.Fprintf(out, "SQL Query: %s\n", resp.SQLQuery)
	}
	fmt.Fprintf(out, "Answer: %s\n", resp.Answer)

	if len(resp.Candidates) > 0 {
		items := make([]pterm.BulletListItem, len(resp.Candidates))
		for i, c := range resp.Candidates {
			items[i] = pterm.BulletListItem{
				Level: 0,
				Text:  fmt.Sprintf("%s (%s) score %.3f", c.Name, c.JobTitle, c.Score),
			}
		}
		list, err := pterm.DefaultBulletList.WithItems(items).Srender()
		if err == nil {
			fmt.Fprint(out, list)
		}
	}
}
