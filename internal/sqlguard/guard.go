// Package sqlguard screens generated SQL before it reaches the backing store.
// It is a first line of defense only: stores also execute inside read-only
// transactions with read-only credentials.
package sqlguard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	ErrEmpty              = errors.New("sql is empty")
	ErrNotReadOnly        = errors.New("sql is not a read-only query")
	ErrMultipleStatements = errors.New("sql contains multiple statements")
	ErrUnterminated       = errors.New("sql contains an unterminated literal or comment")
)

// forbiddenKeywords may not appear anywhere outside literals and comments.
var forbiddenKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true,
	"ALTER": true, "CREATE": true, "TRUNCATE": true, "GRANT": true,
	"REVOKE": true, "MERGE": true, "CALL": true, "EXEC": true,
	"EXECUTE": true, "LOAD": true, "COPY": true, "ATTACH": true,
	"DETACH": true, "PRAGMA": true, "LOCK": true, "UNLOCK": true,
	"RENAME": true, "HANDLER": true, "INTO": true, "OUTFILE": true,
	"DUMPFILE": true, "VACUUM": true, "INSTALL": true, "SET": true,
}

var leadingLabel = regexp.MustCompile(`(?i)^\s*(sqlquery|sql|query)\s*:\s*`)

// Normalize strips markdown fences, a leading "SQLQuery:" style label,
// surrounding whitespace and trailing semicolons from model output.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 && isFenceLanguage(trimmed[:idx]) {
			trimmed = trimmed[idx+1:]
		}
		if idx := strings.Index(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
	}
	trimmed = leadingLabel.ReplaceAllString(strings.TrimSpace(trimmed), "")
	trimmed = strings.TrimSpace(trimmed)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func isFenceLanguage(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	for _, r := range value {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// CheckReadOnly accepts exactly one SELECT or WITH statement. The input is
// expected to be normalized already.
func CheckReadOnly(sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return ErrEmpty
	}
	// The text must pass under every supported dialect's lexing rules, so a
	// literal or comment that one dialect closes early cannot hide a statement.
	for _, mode := range lexModes {
		tokens, err := scan(sqlText, mode)
		if err != nil {
			return err
		}
		if err := checkTokens(tokens); err != nil {
			return err
		}
	}
	return nil
}

func checkTokens(tokens []token) error {
	if len(tokens) == 0 {
		return ErrEmpty
	}

	first := ""
	for _, tok := range tokens {
		if tok.kind == tokenWord {
			first = tok.text
			break
		}
	}
	if first != "SELECT" && first != "WITH" {
		return fmt.Errorf("%w: statement starts with %q", ErrNotReadOnly, first)
	}

	for i, tok := range tokens {
		switch tok.kind {
		case tokenSemicolon:
			return ErrMultipleStatements
		case tokenWord:
			if tok.text == "REPLACE" && i+1 < len(tokens) && tokens[i+1].kind == tokenOpenParen {
				continue
			}
			if tok.text == "REPLACE" || forbiddenKeywords[tok.text] {
				return fmt.Errorf("%w: contains %s", ErrNotReadOnly, tok.text)
			}
		}
	}
	return nil
}

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenSemicolon
	tokenOpenParen
)

type token struct {
	kind tokenKind
	text string
}

// lexMode captures where mysql, postgres and duckdb disagree on literals
// and comments.
type lexMode struct {
	backslashEscapes bool // mysql: 'a\'' is one literal
	hashComments     bool // mysql: '#' opens a line comment
	dashNeedsSpace   bool // mysql: '--' must be followed by whitespace
}

var lexModes = func() []lexMode {
	modes := make([]lexMode, 0, 8)
	for _, backslash := range []bool{false, true} {
		for _, hash := range []bool{false, true} {
			for _, dash := range []bool{false, true} {
				modes = append(modes, lexMode{backslashEscapes: backslash, hashComments: hash, dashNeedsSpace: dash})
			}
		}
	}
	return modes
}()

// scan yields keywords and statement separators, skipping string literals,
// quoted identifiers and comments.
func scan(input string, mode lexMode) ([]token, error) {
	runes := []rune(input)
	tokens := make([]token, 0, 32)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '\'' || r == '"' || r == '`':
			end, ok := skipQuoted(runes, i, mode.backslashEscapes)
			if !ok {
				return nil, ErrUnterminated
			}
			i = end
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-' &&
			(!mode.dashNeedsSpace || i+2 == len(runes) || unicode.IsSpace(runes[i+2])):
			i = skipLine(runes, i)
		case r == '#' && mode.hashComments:
			i = skipLine(runes, i)
		case r == '$':
			// Postgres dollar quoting; bare "$" never appears in generated queries.
			return nil, fmt.Errorf("%w: dollar-quoted text", ErrNotReadOnly)
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			if i+2 < len(runes) && runes[i+2] == '!' {
				// MySQL runs the body of /*! ... */ comments.
				return nil, fmt.Errorf("%w: executable comment", ErrNotReadOnly)
			}
			end := closeComment(runes, i+2)
			if end < 0 {
				return nil, ErrUnterminated
			}
			i = end + 2
		case r == ';':
			tokens = append(tokens, token{kind: tokenSemicolon})
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokenOpenParen})
			i++
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_' || runes[i] == '$') {
				i++
			}
			tokens = append(tokens, token{kind: tokenWord, text: strings.ToUpper(string(runes[start:i]))})
		default:
			i++
		}
	}
	return tokens, nil
}

func skipLine(runes []rune, i int) int {
	for i < len(runes) && runes[i] != '\n' {
		i++
	}
	return i
}

func skipQuoted(runes []rune, start int, backslashEscapes bool) (int, bool) {
	quote := runes[start]
	for i := start + 1; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if backslashEscapes && quote != '`' {
				i++
			}
		case quote:
			if i+1 < len(runes) && runes[i+1] == quote {
				i++
				continue
			}
			return i + 1, true
		}
	}
	return 0, false
}

func closeComment(runes []rune, start int) int {
	for i := start; i+1 < len(runes); i++ {
		if runes[i] == '*' && runes[i+1] == '/' {
			return i
		}
	}
	return -1
}
