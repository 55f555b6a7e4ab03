package docstore

// Filter selects documents. Store implementations either evaluate Match
// directly or translate the expression tree into their own query language.
type Filter interface {
	Match(d Document) bool
	isFilter()
}

// All matches every document.
type All struct{}

// None matches nothing. Used as an explicit deny.
type None struct{}

// Eq matches documents whose Field equals Value.
type Eq struct {
	Field string
	Value string
}

// In matches documents whose Field is one of Values.
type In struct {
	Field  string
	Values []string
}

// ElemIn matches documents where at least one element of the Array field
// has its Field member in Values, e.g. costsRights[].contractId.
type ElemIn struct {
	Array  string
	Field  string
	Values []string
}

// And matches when every member matches. An empty And matches everything.
type And []Filter

// Or matches when any member matches. An empty Or matches nothing.
type Or []Filter

func (All) isFilter() {}
func (None) isFilter() {}
func (Eq) isFilter() {}
func (In) isFilter() {}
func (ElemIn) isFilter() {}
func (And) isFilter() {}
func (Or) isFilter() {}

func (All) Match(Document) bool { return true }
func (None) Match(Document) bool { return false }

func (f Eq) Match(d Document) bool {
	_, present := d[f.Field]
	return present && d.String(f.Field) == f.Value
}

func (f In) Match(d Document) bool {
	if _, present := d[f.Field]; !present {
		return false
	}
	return contains(f.Values, d.String(f.Field))
}

func (f ElemIn) Match(d Document) bool {
	for _, elem := range elements(d[f.Array]) {
		if v, ok := elem[f.Field]; ok && contains(f.Values, scalarString(v)) {
			return true
		}
	}
	return false
}

func (f And) Match(d Document) bool {
	for _, sub := range f {
		if !sub.Match(d) {
			return false
		}
	}
	return true
}

func (f Or) Match(d Document) bool {
	for _, sub := range f {
		if sub.Match(d) {
			return true
		}
	}
	return false
}

func elements(v any) []map[string]any {
	switch t := v.(type) {
	case []map[string]any:
		return t
	case []Document:
		out := make([]map[string]any, len(t))
		for i, d := range t {
			out[i] = d
		}
		return out
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			switch m := e.(type) {
			case map[string]any:
				out = append(out, m)
			case Document:
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
