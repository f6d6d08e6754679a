package sqldb

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// StatementKind classifies a statement for the access policy.
type StatementKind string

const (
	KindRead  StatementKind = "read"
	KindWrite StatementKind = "write"
)

// Statement is what the guard learned about a query.
type Statement struct {
	Kind StatementKind
	// Tables are the normalized names of every relation read, CTEs excluded.
	Tables []string
}

var (
	// ErrEmptyStatement is returned for blank input.
	ErrEmptyStatement = errors.New("empty statement")
	// ErrUnresolvedTable is returned when a FROM or JOIN reads something the
	// analyzer cannot name. It wraps ErrTableNotAllowed.
	ErrUnresolvedTable = fmt.Errorf("%w: unresolved relation after FROM or JOIN", ErrTableNotAllowed)
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokIdent
	tokPunct
	tokString
)

type token struct {
	kind tokenKind
	text string
}

func (t token) is(word string) bool {
	return t.kind == tokWord && t.text == word
}

func (t token) punct(p string) bool {
	return t.kind == tokPunct && t.text == p
}

func (t token) name() bool {
	return t.kind == tokIdent || (t.kind == tokWord && !reserved[t.text])
}

var writeKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "drop": true, "alter": true,
	"create": true, "replace": true, "truncate": true, "attach": true, "detach": true,
	"pragma": true, "vacuum": true, "grant": true, "revoke": true, "merge": true,
	"copy": true, "reindex": true, "upsert": true,
}

var reserved = map[string]bool{
	"select": true, "from": true, "where": true, "group": true, "order": true, "by": true,
	"limit": true, "offset": true, "join": true, "inner": true, "left": true, "right": true,
	"full": true, "cross": true, "outer": true, "natural": true, "on": true, "using": true,
	"union": true, "except": true, "intersect": true, "having": true, "window": true,
	"as": true, "with": true, "recursive": true, "lateral": true, "returning": true,
	"and": true, "or": true, "not": true, "distinct": true, "all": true, "values": true,
}

// functions whose argument list uses FROM as a keyword
var fromArgFunctions = map[string]bool{
	"extract": true, "substring": true, "trim": true, "overlay": true, "position": true,
}

// skipQuoted returns the index just past the literal opened by the quote at
// r[i]. A doubled quote is an escaped quote; with backslash set, so is \'.
func skipQuoted(r []rune, i int, backslash bool) int {
	for i++; i < len(r); i++ {
		switch {
		case backslash && r[i] == '\\':
			i++
		case r[i] == '\'' && i+1 < len(r) && r[i+1] == '\'':
			i++
		case r[i] == '\'':
			return i + 1
		}
	}
	return len(r)
}

// dollarTag returns the $tag$ opening a dollar-quoted literal at r[i], or ""
// when r[i] starts something else, such as a $1 parameter.
func dollarTag(r []rune, i int) string {
	j := i + 1
	for j < len(r) && (unicode.IsLetter(r[j]) || r[j] == '_' || (j > i+1 && unicode.IsDigit(r[j]))) {
		j++
	}
	if j < len(r) && r[j] == '$' {
		return string(r[i : j+1])
	}
	return ""
}

func skipDollarQuoted(r []rune, i int, tag string) int {
	n := len([]rune(tag))
	for j := i + n; j+n <= len(r); j++ {
		if string(r[j:j+n]) == tag {
			return j + n
		}
	}
	return len(r)
}

// tokenize splits query into tokens. With pg set it follows the Postgres
// lexer (E'' and $$ literals, no [ or ` identifiers), otherwise SQLite's.
func tokenize(query string, pg bool) []token {
	var toks []token
	r := []rune(query)
	for i := 0; i < len(r); {
		c := r[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '-' && i+1 < len(r) && r[i+1] == '-':
			for i < len(r) && r[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(r) && r[i+1] == '*':
			i += 2
			for i+1 < len(r) && !(r[i] == '*' && r[i+1] == '/') {
				i++
			}
			i += 2
		case c == '\'':
			i = skipQuoted(r, i, false)
			toks = append(toks, token{kind: tokString})
		case pg && (c == 'e' || c == 'E') && i+1 < len(r) && r[i+1] == '\'':
			i = skipQuoted(r, i+1, true)
			toks = append(toks, token{kind: tokString})
		case pg && c == '$' && dollarTag(r, i) != "":
			i = skipDollarQuoted(r, i, dollarTag(r, i))
			toks = append(toks, token{kind: tokString})
		case c == '"' || (!pg && (c == '`' || c == '[')):
			closer := c
			if c == '[' {
				closer = ']'
			}
			j := i + 1
			var b strings.Builder
			for j < len(r) {
				if r[j] == closer {
					if closer != ']' && j+1 < len(r) && r[j+1] == closer {
						b.WriteRune(closer)
						j += 2
						continue
					}
					break
				}
				b.WriteRune(r[j])
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: strings.ToLower(b.String())})
			i = j + 1
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(r) && (unicode.IsLetter(r[j]) || unicode.IsDigit(r[j]) || r[j] == '_' || r[j] == '$') {
				j++
			}
			toks = append(toks, token{kind: tokWord, text: strings.ToLower(string(r[i:j]))})
			i = j
		case unicode.IsDigit(c):
			j := i
			for j < len(r) && (unicode.IsDigit(r[j]) || r[j] == '.') {
				j++
			}
			i = j
		case strings.ContainsRune("(),;.", c):
			toks = append(toks, token{kind: tokPunct, text: string(c)})
			i++
		default:
			i++
		}
	}
	return toks
}

// Analyze inspects a single SQL statement. It is a lexical scan, not a
// parser: it rejects batches, classifies the statement as read or write and
// collects every relation named after FROM or JOIN. A FROM or JOIN whose
// target is neither a name nor a subquery fails with ErrUnresolvedTable.
//
// The query is scanned with both the SQLite and the Postgres lexing rules
// and the results are merged, so quoting one dialect reads differently
// cannot hide a relation from the other.
func Analyze(query string) (*Statement, error) {
	var merged *Statement
	for _, pg := range []bool{false, true} {
		stmt, err := analyzeTokens(tokenize(query, pg))
		if err != nil {
			return nil, err
		}
		if merged == nil {
			merged = stmt
			continue
		}
		if stmt.Kind == KindWrite {
			merged.Kind = KindWrite
		}
		for _, t := range stmt.Tables {
			if !slices.Contains(merged.Tables, t) {
				merged.Tables = append(merged.Tables, t)
			}
		}
	}
	return merged, nil
}

func analyzeTokens(toks []token) (*Statement, error) {
	// trailing semicolons are fine, anything after one is a second statement
	for len(toks) > 0 && toks[len(toks)-1].punct(";") {
		toks = toks[:len(toks)-1]
	}
	if len(toks) == 0 {
		return nil, ErrEmptyStatement
	}
	for _, t := range toks {
		if t.punct(";") {
			return nil, ErrMultipleStatements
		}
	}

	stmt := &Statement{Kind: KindRead}
	if !toks[0].is("select") && !toks[0].is("with") {
		stmt.Kind = KindWrite
	}
	for i, t := range toks {
		if t.kind == tokWord && writeKeywords[t.text] {
			if t.text == "replace" && i+1 < len(toks) && toks[i+1].punct("(") {
				continue
			}
			stmt.Kind = KindWrite
		}
	}

	// WITH name AS ( ... ), name AS ( ... )
	ctes := map[string]bool{}
	for i := 1; i+2 < len(toks); i++ {
		prev := toks[i-1]
		opens := prev.is("with") || prev.is("recursive") || (prev.punct(",") && i > 1 && toks[i-2].punct(")"))
		if opens && toks[i].name() && toks[i+1].is("as") && toks[i+2].punct("(") {
			ctes[toks[i].text] = true
		}
	}

	seen := map[string]bool{}
	addTable := func(name string) {
		name = NormalizeTable(name)
		if name == "" || ctes[name] || seen[name] {
			return
		}
		seen[name] = true
		stmt.Tables = append(stmt.Tables, name)
	}

	var parens []string
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.punct("("):
			owner := ""
			if i > 0 && toks[i-1].kind == tokWord {
				owner = toks[i-1].text
			}
			parens = append(parens, owner)
			continue
		case t.punct(")"):
			if len(parens) > 0 {
				parens = parens[:len(parens)-1]
			}
			continue
		case !t.is("from") && !t.is("join"):
			continue
		}

		if t.is("from") && len(parens) > 0 && fromArgFunctions[parens[len(parens)-1]] {
			continue
		}
		// a IS [NOT] DISTINCT FROM b
		if t.is("from") && i > 1 && toks[i-1].is("distinct") && (toks[i-2].is("is") || toks[i-2].is("not")) {
			continue
		}

		list := t.is("from")
		j := i + 1
		for {
			if j < len(toks) && toks[j].is("lateral") {
				j++
			}
			// FROM (t), FROM ((a JOIN b ON ...)): step into grouping parens,
			// the outer loop sees them too
			k := j
			for k < len(toks) && toks[k].punct("(") {
				k++
			}
			if k > j {
				if k < len(toks) && (toks[k].is("select") || toks[k].is("with") || toks[k].is("values")) {
					// subquery, scanned by the outer loop
					break
				}
				j = k
			}
			if j >= len(toks) || !toks[j].name() {
				return nil, ErrUnresolvedTable
			}

			name := toks[j].text
			j++
			for j+1 < len(toks) && toks[j].punct(".") && toks[j+1].name() {
				name += "." + toks[j+1].text
				j += 2
			}
			addTable(name)

			if j < len(toks) && toks[j].is("as") {
				j++
			}
			if j < len(toks) && toks[j].name() {
				j++
			}
			if list && j < len(toks) && toks[j].punct(",") {
				j++
				continue
			}
			break
		}
	}

	return stmt, nil
}

// NormalizeTable lower-cases a table name and drops the default schema
// qualifier ("main" for SQLite, "public" for Postgres).
func NormalizeTable(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, prefix := range []string{"main.", "public."} {
		name = strings.TrimPrefix(name, prefix)
	}
	return name
}
