// Package sqlchain implements the structured pipeline: SQL generation from a
// question, guarded execution and answer synthesis, run as a sequential chain.
package sqlchain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aanchal1903/BusinessOps-Chatbot/sqldb"
)

// ErrSQLExtractionFailed is returned when no single statement could be
// isolated from the model output.
var ErrSQLExtractionFailed = errors.New("could not extract a SQL statement from model output")

var (
	fenceRegex   = regexp.MustCompile("(?s)```(?:[A-Za-z]+[ \t]*\n|\n)?(.*?)```")
	labelRegex   = regexp.MustCompile(`(?i)SQL\s*Query\s*:`)
	trailerRegex = regexp.MustCompile(`(?i)\b(SQL\s*Result|Answer)\s*:`)
	leadRegex    = regexp.MustCompile(`(?i)^(select|with|insert|update|delete|drop|alter|create|replace|truncate|pragma)\b`)
	startRegex   = regexp.MustCompile(`(?im)^[ \t]*(select|with)\b`)
)

// ExtractSQL isolates the statement from raw model output. It tolerates code
// fences, a "SQLQuery:" label (the last one wins), trailing "SQLResult:" or
// "Answer:" sections, surrounding prose on other lines and a trailing
// semicolon.
func ExtractSQL(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	if m := fenceRegex.FindStringSubmatch(s); m != nil {
		s = m[1]
	} else {
		s = strings.ReplaceAll(s, "```", "")
	}

	if locs := labelRegex.FindAllStringIndex(s, -1); len(locs) > 0 {
		s = s[locs[len(locs)-1][1]:]
	}
	if loc := trailerRegex.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}

	s = strings.TrimSpace(s)
	if !leadRegex.MatchString(s) {
		loc := startRegex.FindStringIndex(s)
		if loc == nil {
			return "", ErrSQLExtractionFailed
		}
		s = strings.TrimSpace(s[loc[0]:])
	}

	for strings.HasSuffix(s, ";") {
		s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	}
	if s == "" {
		return "", ErrSQLExtractionFailed
	}

	// access decisions belong to the executor's guard
	if _, err := sqldb.Analyze(s); err != nil && !errors.Is(err, sqldb.ErrUnresolvedTable) {
		return "", fmt.Errorf("%w: %w", ErrSQLExtractionFailed, err)
	}
	return s, nil
}
