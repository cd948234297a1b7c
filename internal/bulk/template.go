package bulk

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed template.yaml
var templateDefinition []byte

// TemplateFilename is the attachment name for the downloadable template.
const TemplateFilename = "catalogs_template.csv"

type templateDoc struct {
	Headers  []string            `yaml:"headers"`
	Examples []map[string]string `yaml:"examples"`
}

// Template renders the catalogs CSV template from its embedded YAML
// definition: a UTF-8 BOM (so spreadsheet editors pick up accented
// characters), the header row, and one example row per entity type.
func Template() ([]byte, error) {
	var doc templateDoc
	if err := yaml.Unmarshal(templateDefinition, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template definition: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("\ufeff")

	w := csv.NewWriter(&buf)
	if err := w.Write(doc.Headers); err != nil {
		return nil, fmt.Errorf("failed to write template header: %w", err)
	}
	for _, example := range doc.Examples {
		record := make([]string, len(doc.Headers))
		for i, h := range doc.Headers {
			record[i] = example[h]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write template row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return buf.Bytes(), nil
}
