package actions

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed examples.yaml
var examplesYAML []byte

// ExampleTurn is one message of an example conversation
type ExampleTurn struct {
	Name    string         `yaml:"name" json:"name"`
	Content ExampleContent `yaml:"content" json:"content"`
}

// ExampleContent is the message body of an ExampleTurn
type ExampleContent struct {
	Text    string   `yaml:"text" json:"text"`
	Stdout  string   `yaml:"stdout,omitempty" json:"stdout,omitempty"`
	Actions []string `yaml:"actions,omitempty" json:"actions,omitempty"`
}

func loadExamples() (map[string][][]ExampleTurn, error) {
	var examples map[string][][]ExampleTurn
	if err := yaml.Unmarshal(examplesYAML, &examples); err != nil {
		return nil, fmt.Errorf("failed to parse action examples: %w", err)
	}
	return examples, nil
}
