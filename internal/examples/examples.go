// Package examples holds the demonstration snippets the playground offers
// in its example picker. The catalog is compiled into the binary.
package examples

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sakif/jsmemes/internal/apperror"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Example is one demonstration snippet.
type Example struct {
	Key         string `yaml:"key" json:"key"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Code        string `yaml:"code" json:"code"`
}

// Catalog is an ordered, read-only set of examples.
type Catalog struct {
	examples []Example
	byKey    map[string]int
}

var (
	loadOnce sync.Once
	loaded   *Catalog
	loadErr  error
)

// Load parses the embedded catalog. The result is cached; callers must not
// modify the examples it returns.
func Load() (*Catalog, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(catalogYAML)
	})
	return loaded, loadErr
}

// Parse builds a catalog from YAML. Keys must be unique and non-empty.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Examples []Example `yaml:"examples"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing example catalog: %w", err)
	}

	c := &Catalog{
		examples: doc.Examples,
		byKey:    make(map[string]int, len(doc.Examples)),
	}
	for i, ex := range doc.Examples {
		if ex.Key == "" {
			return nil, fmt.Errorf("example %d has no key", i)
		}
		if _, dup := c.byKey[ex.Key]; dup {
			return nil, fmt.Errorf("duplicate example key %q", ex.Key)
		}
		c.byKey[ex.Key] = i
	}
	return c, nil
}

// List returns the examples in catalog order.
func (c *Catalog) List() []Example {
	out := make([]Example, len(c.examples))
	copy(out, c.examples)
	return out
}

// Get returns the example with the given key.
func (c *Catalog) Get(key string) (Example, error) {
	i, ok := c.byKey[key]
	if !ok {
		return Example{}, apperror.NotFound("example", key)
	}
	return c.examples[i], nil
}
