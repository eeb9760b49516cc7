package imports

import (
	"bytes"

	"github.com/angelmondragon/materials-ledger/internal/tabular"
	"github.com/angelmondragon/materials-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/materials-ledger/pkg/errors"
)

// Template is the header row and example row users start a file from.
type Template struct {
	Kind      enums.ImportKind
	Delimiter rune
	Headers   []string
	Example   []string
}

var templates = map[enums.ImportKind]Template{
	enums.ImportKindDirect: {
		Kind:      enums.ImportKindDirect,
		Delimiter: ';',
		Headers:   []string{"Indeks", "Nazwa", "Stan", "JM", "Cena", "Magazyn", "Dostawca", "KodKreskowy", "EAN"},
		Example:   []string{"CAB-001", "Przewód YDY 3x2,5", "100", "m", "4,20", "A-01-03", "Elektro-Hurt", "5901234123457", "5901234123457"},
	},
	enums.ImportKindStaged: {
		Kind:      enums.ImportKindStaged,
		Delimiter: ',',
		Headers:   []string{"catalog_number", "name", "unit", "default_quantity", "category", "supplier", "unit_price"},
		Example:   []string{"KAT-001", "Przewód YDY 3x2.5", "m", "100", "Przewody", "Elektro-Hurt", "4.20"},
	},
}

// TemplateFor returns the template definition for kind.
func TemplateFor(kind enums.ImportKind) (Template, error) {
	tpl, ok := templates[kind]
	if !ok {
		return Template{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown template kind").
			WithDetails(map[string]any{"kind": kind, "accepted": []enums.ImportKind{enums.ImportKindDirect, enums.ImportKindStaged}})
	}
	return Template{
		Kind:      tpl.Kind,
		Delimiter: tpl.Delimiter,
		Headers:   append([]string(nil), tpl.Headers...),
		Example:   append([]string(nil), tpl.Example...),
	}, nil
}

// GenerateTemplate renders the CSV template for kind: a header row plus one
// example row.
func GenerateTemplate(kind enums.ImportKind) (string, error) {
	tpl, err := TemplateFor(kind)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tabular.WriteCSV(&buf, tpl.Delimiter, tpl.Headers, tpl.Example); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render csv template")
	}
	return buf.String(), nil
}

// GenerateTemplateWorkbook renders the same template as an xlsx workbook.
func GenerateTemplateWorkbook(kind enums.ImportKind) ([]byte, error) {
	tpl, err := TemplateFor(kind)
	if err != nil {
		return nil, err
	}
	data, err := tabular.WriteExcel(string(kind), tpl.Headers, tpl.Example)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render workbook template")
	}
	return data, nil
}
