package pg

import (
	"fmt"
	"strings"

	"royaltyhub.org/internal/docstore"
)

// Compile renders f as a SQL boolean expression over the data column.
// Arguments are numbered after the leading ones, which callers bind first
// (typically the collection as $1).
func Compile(f docstore.Filter, leading ...any) (string, []any, error) {
	c := &compiler{args: append([]any(nil), leading...)}
	sql, err := c.compile(f)
	if err != nil {
		return "", nil, err
	}
	return sql, c.args, nil
}

type compiler struct {
	args []any
}

func (c *compiler) arg(v any) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", len(c.args))
}

func (c *compiler) compile(f docstore.Filter) (string, error) {
	switch f := f.(type) {
	case nil, docstore.All:
		return "true", nil
	case docstore.None:
		return "false", nil
	case docstore.Eq:
		return fmt.Sprintf("(data->>%s) = %s", c.arg(f.Field), c.arg(f.Value)), nil
	case docstore.In:
		if len(f.Values) == 0 {
			return "false", nil
		}
		return fmt.Sprintf("(data->>%s) = any(%s)", c.arg(f.Field), c.arg(f.Values)), nil
	case docstore.ElemIn:
		if len(f.Values) == 0 {
			return "false", nil
		}
		arr := c.arg(f.Array)
		return fmt.Sprintf(
			"exists (select 1 from jsonb_array_elements(case when jsonb_typeof(data->%s) = 'array' then data->%s else '[]'::jsonb end) e where (e->>%s) = any(%s))",
			arr, arr, c.arg(f.Field), c.arg(f.Values)), nil
	case docstore.And:
		return c.join(f, " and ", "true")
	case docstore.Or:
		return c.join(f, " or ", "false")
	default:
		return "", fmt.Errorf("pg: unsupported filter %T", f)
	}
}

func (c *compiler) join(parts []docstore.Filter, sep, empty string) (string, error) {
	if len(parts) == 0 {
		return empty, nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s, err := c.compile(p)
		if err != nil {
			return "", err
		}
		out = append(out, s)
	}
	return "(" + strings.Join(out, sep) + ")", nil
}
