package questionbank

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML bank.
//
//	categories:
//	  behavioral:
//	    - How do you handle receiving critical feedback?
func LoadFile(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank %s: %w", path, err)
	}
	var bank Bank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parse question bank %s: %w", path, err)
	}
	if err := bank.Validate(); err != nil {
		return nil, err
	}
	return &bank, nil
}
