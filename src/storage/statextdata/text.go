package statextdata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
)

// String renders the value the way PostgreSQL prints pg_ndistinct:
// {"1, 2": 33, "1, 3": 11}
func (n *NDistinct) String() string {
	var sb strings.Builder

	sb.WriteByte('{')

	for i, item := range n.Items {
		if i > 0 {
			sb.WriteString(", ")
		}

		sb.WriteByte('"')
		writeAttributes(&sb, item.Attributes)
		sb.WriteString("\": ")
		sb.WriteString(strconv.Itoa(int(item.NDistinct)))
	}

	sb.WriteByte('}')

	return sb.String()
}

// String renders the value the way PostgreSQL prints pg_dependencies:
// {"1 => 2": 1.000000, "1, 2 => 3": 0.500000}
func (d *Dependencies) String() string {
	var sb strings.Builder

	sb.WriteByte('{')

	for i, dep := range d.Items {
		if i > 0 {
			sb.WriteString(", ")
		}

		sb.WriteByte('"')
		writeAttributes(&sb, dep.Attributes)
		sb.WriteString(" => ")
		sb.WriteString(strconv.Itoa(int(dep.Dependent)))
		sb.WriteString("\": ")
		sb.WriteString(strconv.FormatFloat(dep.Degree, 'f', 6, 64))
	}

	sb.WriteByte('}')

	return sb.String()
}

func ParseNDistinct(s string) (*NDistinct, error) {
	entries, err := parseTextObject(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ndistinct: %w", err)
	}

	n := &NDistinct{Items: make([]NDistinctItem, 0, len(entries))}

	for _, e := range entries {
		attrs, err := parseAttributes(e.key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ndistinct key %q: %w", e.key, err)
		}

		v, err := e.value.Float64()
		if err != nil {
			return nil, fmt.Errorf("failed to parse ndistinct value %q: %w", e.value, err)
		}

		n.Items = append(n.Items, NDistinctItem{Attributes: attrs, NDistinct: v})
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}

	return n, nil
}

func ParseDependencies(s string) (*Dependencies, error) {
	entries, err := parseTextObject(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dependencies: %w", err)
	}

	d := &Dependencies{Items: make([]Dependency, 0, len(entries))}

	for _, e := range entries {
		lhs, rhs, ok := strings.Cut(e.key, "=>")
		if !ok {
			return nil, fmt.Errorf("%w: dependency key %q has no \"=>\"", ErrInvalidPayload, e.key)
		}

		attrs, err := parseAttributes(lhs)
		if err != nil {
			return nil, fmt.Errorf("failed to parse dependency key %q: %w", e.key, err)
		}

		dependent, err := parseAttribute(rhs)
		if err != nil {
			return nil, fmt.Errorf("failed to parse dependency key %q: %w", e.key, err)
		}

		degree, err := e.value.Float64()
		if err != nil {
			return nil, fmt.Errorf("failed to parse dependency degree %q: %w", e.value, err)
		}

		d.Items = append(d.Items, Dependency{
			Attributes: attrs,
			Dependent:  dependent,
			Degree:     degree,
		})
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}

	return d, nil
}

type textEntry struct {
	key   string
	value json.Number
}

// parseTextObject reads a flat JSON object of numbers keeping the key order.
func parseTextObject(s string) ([]textEntry, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected '{', got %v", ErrInvalidPayload, tok)
	}

	var entries []textEntry

	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return nil, err
		}

		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected key, got %v", ErrInvalidPayload, tok)
		}

		tok, err = dec.Token()
		if err != nil {
			return nil, err
		}

		num, ok := tok.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%w: expected number for %q, got %v", ErrInvalidPayload, key, tok)
		}

		entries = append(entries, textEntry{key: key, value: num})
	}

	if _, err = dec.Token(); err != nil {
		return nil, err
	}

	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", ErrInvalidPayload)
	}

	return entries, nil
}

func parseAttributes(s string) ([]common.AttrNumber, error) {
	parts := strings.Split(s, ",")
	attrs := make([]common.AttrNumber, 0, len(parts))

	for _, p := range parts {
		a, err := parseAttribute(p)
		if err != nil {
			return nil, err
		}

		attrs = append(attrs, a)
	}

	return attrs, nil
}

func parseAttribute(s string) (common.AttrNumber, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return common.InvalidAttrNumber, err
	}

	return common.AttrNumber(v), nil
}

func writeAttributes(sb *strings.Builder, attrs []common.AttrNumber) {
	for i, a := range attrs {
		if i > 0 {
			sb.WriteString(", ")
		}

		sb.WriteString(strconv.Itoa(int(a)))
	}
}
