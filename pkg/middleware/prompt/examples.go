package prompt

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

//go:embed examples.yaml
var defaultExamples []byte

// Example is one worked demonstration: a question, its context and the
// expected answer with sources.
type Example struct {
	Question string           `yaml:"question"`
	Context  []ExampleContext `yaml:"context"`
	Answer   string           `yaml:"answer"`
	Sources  []string         `yaml:"sources"`
}

// ExampleContext is one document shown in an example.
type ExampleContext struct {
	Content string `yaml:"content"`
	Source  string `yaml:"source"`
}

// DefaultExamples returns the built-in examples.
func DefaultExamples() []Example {
	examples, err := ParseExamples(defaultExamples)
	if err != nil {
		panic(fmt.Sprintf("embedded examples.yaml: %v", err))
	}
	return examples
}

// LoadExamples reads examples from a YAML file.
func LoadExamples(path string) ([]Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read examples: %w", err)
	}
	return ParseExamples(data)
}

// ParseExamples decodes a YAML list of examples. Every example needs a
// question and an answer.
func ParseExamples(data []byte) ([]Example, error) {
	var examples []Example
	if err := yaml.Unmarshal(data, &examples); err != nil {
		return nil, fmt.Errorf("decode examples: %w", err)
	}
	for i, ex := range examples {
		if ex.Question == "" || ex.Answer == "" {
			return nil, fmt.Errorf("example %d: question and answer are required", i)
		}
	}
	return examples, nil
}
