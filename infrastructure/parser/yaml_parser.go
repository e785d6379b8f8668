// Package parser decodes board configuration documents.
package parser

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/h7-kernel/domain/ports"
)

// YamlConfigParser implements ConfigParser for YAML.
type YamlConfigParser struct {
	strict bool
}

// NewYamlConfigParser creates a new YamlConfigParser. A strict parser
// rejects keys that have no matching field.
func NewYamlConfigParser(strict bool) ports.ConfigParser {
	return &YamlConfigParser{strict: strict}
}

// Parse unmarshals YAML bytes into v. Fields absent from data keep the
// value v already holds. An empty document is not an error.
func (p *YamlConfigParser) Parse(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(p.strict)
	if err := dec.Decode(v); err != nil && !stdErrors.Is(err, io.EOF) {
		return fmt.Errorf("yaml: %w", err)
	}
	return nil
}
