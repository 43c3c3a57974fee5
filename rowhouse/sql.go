// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package rowhouse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Identifier marks a bound value as a database identifier (table or column
// name). It is escaped with backtick quoting instead of string-literal
// quoting.
type Identifier string

// sqlBuilder assembles the final query text from a template with `?`
// placeholders and at most one `?fields` placeholder. Arguments are escaped
// at bind time and substituted left-to-right at finish time; all count and
// placeholder validation is deferred to finish.
type sqlBuilder struct {
	template  string
	args      []string
	fields    string
	hasFields bool
	suffix    string
	bindErr   error
}

func newSQLBuilder(template string) *sqlBuilder {
	return &sqlBuilder{template: template}
}

// bindArg escapes value and appends it to the argument list. Unsupported
// value types are reported at finish, before dispatch.
func (s *sqlBuilder) bindArg(value any) {
	lit, err := escapeValue(value)
	if err != nil && s.bindErr == nil {
		s.bindErr = err
	}
	s.args = append(s.args, lit)
}

// bindFields supplies the column list substituted for `?fields`. Binding
// fields for a template without the placeholder is not an error; the fetch
// entry points bind them unconditionally.
func (s *sqlBuilder) bindFields(names []string) {
	s.fields = strings.Join(names, ",")
	s.hasFields = true
}

// append adds raw trailing text after all placeholder state is fixed. Used
// for the FORMAT clause.
func (s *sqlBuilder) appendText(text string) {
	s.suffix += text
}

// finish performs the substitution pass. It fails when the bound argument
// count does not match the `?` count, when `?fields` appears without a
// bound column list, or when it appears more than once.
func (s *sqlBuilder) finish() (string, error) {
	if s.bindErr != nil {
		return "", s.bindErr
	}

	var out strings.Builder
	out.Grow(len(s.template) + len(s.suffix))
	rest := s.template
	argIdx := 0
	fieldsSeen := false

	for {
		i := strings.IndexByte(rest, '?')
		if i < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:i])
		rest = rest[i+1:]

		if strings.HasPrefix(rest, "fields") {
			if fieldsSeen {
				return "", fmt.Errorf("rowhouse: at most one ?fields placeholder is allowed")
			}
			if !s.hasFields {
				return "", fmt.Errorf("rowhouse: ?fields requires a row type with a column manifest")
			}
			fieldsSeen = true
			out.WriteString(s.fields)
			rest = rest[len("fields"):]
			continue
		}

		if argIdx >= len(s.args) {
			return "", fmt.Errorf("rowhouse: %d parameters bound, query expects more", len(s.args))
		}
		out.WriteString(s.args[argIdx])
		argIdx++
	}

	if argIdx != len(s.args) {
		return "", fmt.Errorf("rowhouse: %d parameters bound, query expects %d", len(s.args), argIdx)
	}

	out.WriteString(s.suffix)
	return out.String(), nil
}

// escapeValue renders a bound value as a SQL fragment: identifiers as
// backtick-quoted names, text and bytes as quoted escaped literals, numeric
// values verbatim, times in the engine's literal syntax.
func escapeValue(value any) (string, error) {
	switch v := value.(type) {
	case Identifier:
		return escapeIdentifier(string(v)), nil
	case string:
		return escapeString(v), nil
	case []byte:
		return escapeString(string(v)), nil
	case time.Time:
		return "'" + v.UTC().Format("2006-01-02 15:04:05") + "'", nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("rowhouse: unsupported bind value type %T", value)
	}
}

// escapeString quotes a text or byte value as a literal, escaping embedded
// quote, backslash, and control characters.
func escapeString(s string) string {
	var out strings.Builder
	out.Grow(len(s) + 2)
	out.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'':
			out.WriteString(`\'`)
		case '\\':
			out.WriteString(`\\`)
		case '\n':
			out.WriteString(`\n`)
		case '\r':
			out.WriteString(`\r`)
		case '\t':
			out.WriteString(`\t`)
		case 0:
			out.WriteString(`\0`)
		default:
			out.WriteByte(c)
		}
	}
	out.WriteByte('\'')
	return out.String()
}

// escapeIdentifier quotes an identifier with backticks.
func escapeIdentifier(s string) string {
	var out strings.Builder
	out.Grow(len(s) + 2)
	out.WriteByte('`')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '`':
			out.WriteString("\\`")
		case '\\':
			out.WriteString(`\\`)
		default:
			out.WriteByte(c)
		}
	}
	out.WriteByte('`')
	return out.String()
}
