package suite

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultSuiteYAML []byte

// File is the YAML shape of a question suite.
type File struct {
	// Name identifies the suite in reports and the run history.
	Name string `yaml:"name"`

	// Description explains what the suite exercises.
	Description string `yaml:"description,omitempty"`

	// Questions lists the test cases, run in order.
	Questions []QuestionEntry `yaml:"questions"`
}

// QuestionEntry is one question as written in a suite file.
type QuestionEntry struct {
	Question string `yaml:"question"`
	Expected string `yaml:"expected,omitempty"`
	Language string `yaml:"language,omitempty"`
}

// Suite is a named, validated question list.
type Suite struct {
	Name        string
	Description string
	Questions   []Question
}

// Load reads and validates a suite YAML file. Unknown fields are rejected,
// which catches typos like "expect:" for "expected:".
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file: %w", err)
	}
	s, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("suite %s: %w", path, err)
	}
	return s, nil
}

// Default returns the embedded default question set.
func Default() *Suite {
	s, err := parse(defaultSuiteYAML)
	if err != nil {
		// The embedded suite is validated by tests; reaching this means a
		// broken build, not a runtime condition.
		panic(fmt.Sprintf("embedded default suite is invalid: %v", err))
	}
	return s
}

func parse(data []byte) (*Suite, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if file.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if len(file.Questions) == 0 {
		return nil, fmt.Errorf("questions list is required and must be non-empty")
	}

	suite := &Suite{Name: file.Name, Description: file.Description}
	for i, entry := range file.Questions {
		q, err := NewQuestion(entry.Question, entry.Expected, entry.Language)
		if err != nil {
			return nil, fmt.Errorf("questions[%d]: %w", i, err)
		}
		suite.Questions = append(suite.Questions, q)
	}
	return suite, nil
}
