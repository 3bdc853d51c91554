package gate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Workflow файл с переопределениями гейтов
type Workflow struct {
	Gates map[string]Definition `yaml:"gates"`
}

// LoadWorkflow читает YAML файл гейтов
func LoadWorkflow(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	return ParseWorkflow(data)
}

// ParseWorkflow разбирает YAML гейтов. Имя гейта берется из ключа, если не задано.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}

	for name, def := range wf.Gates {
		if def.Name == "" {
			def.Name = name
		}
		if def.Name != name {
			return nil, fmt.Errorf("parse workflow: gate key %q does not match name %q", name, def.Name)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("parse workflow: %w", err)
		}
		wf.Gates[name] = def
	}
	return &wf, nil
}

// Resolve возвращает определение из файла или определение по умолчанию
func (w *Workflow) Resolve(def Definition) Definition {
	if w == nil {
		return def
	}
	if override, ok := w.Gates[def.Name]; ok {
		return override
	}
	return def
}
