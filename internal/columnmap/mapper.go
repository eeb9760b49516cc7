package columnmap

import (
	"fmt"
	"sort"
	"strings"

	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
)

// Mapping binds canonical fields to source header names.
type Mapping map[Field]string

// Header returns the source header bound to f.
func (m Mapping) Header(f Field) (string, bool) {
	h, ok := m[f]
	return h, ok
}

// Value reads f from a row keyed by header. Missing mapping or cell yields "".
func (m Mapping) Value(row map[string]string, f Field) string {
	h, ok := m[f]
	if !ok {
		return ""
	}
	return strings.TrimSpace(row[h])
}

// Strings converts the mapping to plain strings for persistence.
func (m Mapping) Strings() map[string]string {
	out := make(map[string]string, len(m))
	for f, h := range m {
		out[string(f)] = h
	}
	return out
}

// Mapper resolves arbitrary spreadsheet headers to canonical fields.
type Mapper struct {
	cfg Config
}

func New(cfg Config) *Mapper {
	return &Mapper{cfg: cfg.Clone()}
}

// Map derives a mapping from headers. For each field an exact
// case-insensitive match beats a substring match; within the same class the
// earliest synonym wins, then the earliest header. Unmapped fields are absent.
func (m *Mapper) Map(headers []string) Mapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalize(h)
	}

	out := Mapping{}
	for _, field := range m.cfg.Fields {
		if h, ok := m.match(field, headers, normalized); ok {
			out[field] = h
		}
	}
	return out
}

func (m *Mapper) match(field Field, headers, normalized []string) (string, bool) {
	synonyms := m.cfg.Synonyms[field]
	for _, syn := range synonyms {
		syn = normalize(syn)
		for i, h := range normalized {
			if h == syn {
				return headers[i], true
			}
		}
	}
	for _, syn := range synonyms {
		syn = normalize(syn)
		if syn == "" {
			continue
		}
		for i, h := range normalized {
			if strings.Contains(h, syn) {
				return headers[i], true
			}
		}
	}
	return "", false
}

// Synonyms returns a copy of the synonym table.
func (m *Mapper) Synonyms() map[Field][]string {
	return m.cfg.Clone().Synonyms
}

// ParseExplicit converts a caller supplied field->header table, rejecting
// unknown field names.
func (m *Mapper) ParseExplicit(raw map[string]string) (Mapping, error) {
	out := Mapping{}
	var unknown []string
	for name, header := range raw {
		f := Field(name)
		if !m.cfg.IsKnown(f) {
			unknown = append(unknown, name)
			continue
		}
		if strings.TrimSpace(header) == "" {
			continue
		}
		out[f] = header
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown mapping fields").
			WithDetails(map[string]any{"fields": unknown})
	}
	return out, nil
}

// Validate checks that every header referenced by mapping exists in headers.
func (m *Mapper) Validate(mapping Mapping, headers []string) error {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[normalize(h)] = struct{}{}
	}
	var missing []string
	for _, f := range m.cfg.Fields {
		h, ok := mapping[f]
		if !ok {
			continue
		}
		if _, found := present[normalize(h)]; !found {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeStructural, fmt.Sprintf("mapped headers not found: %s", strings.Join(missing, ", "))).
			WithDetails(map[string]any{"missing_headers": missing})
	}
	return nil
}

// Resolve rewrites mapping values to the exact header spelling found in the
// file, so lookups by header succeed regardless of case.
func Resolve(mapping Mapping, headers []string) Mapping {
	byNorm := make(map[string]string, len(headers))
	for _, h := range headers {
		if _, ok := byNorm[normalize(h)]; !ok {
			byNorm[normalize(h)] = h
		}
	}
	out := make(Mapping, len(mapping))
	for f, h := range mapping {
		if actual, ok := byNorm[normalize(h)]; ok {
			out[f] = actual
			continue
		}
		out[f] = h
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
