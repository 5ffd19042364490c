package firmware

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/layouts.yaml
var layoutsYAML []byte

// Layout describes where a store family is expected to live.
type Layout struct {
	Family       string `yaml:"family"`
	Store        string `yaml:"store"`
	Name         string `yaml:"name"`
	Signature    string `yaml:"signature"`
	ExpectedBase int64  `yaml:"expected_base,omitempty"`
	Size         int64  `yaml:"size"`
	CRCOffset    int64  `yaml:"crc_offset,omitempty"`
	Verified     bool   `yaml:"verified"`
	Notes        string `yaml:"notes"`
}

// Model maps a hardware configuration code to a machine description.
type Model struct {
	HWC      string `yaml:"hwc"`
	Name     string `yaml:"name"`
	Verified bool   `yaml:"verified"`
}

// Catalog holds store layouts and HWC model entries.
type Catalog struct {
	Layouts []*Layout `yaml:"layouts"`
	Models  []*Model  `yaml:"models"`

	index map[string]*Model
	mu    sync.RWMutex
}

var (
	builtinCatalog     *Catalog
	builtinCatalogOnce sync.Once
	builtinCatalogErr  error
)

// LoadCatalog returns the embedded catalog. The catalog is parsed once.
func LoadCatalog() (*Catalog, error) {
	builtinCatalogOnce.Do(func() {
		builtinCatalog, builtinCatalogErr = parseCatalog(layoutsYAML)
	})
	return builtinCatalog, builtinCatalogErr
}

// LoadCatalogWithModels returns a fresh catalog holding the embedded layouts
// plus the models listed in a user YAML file. Layouts in the user file
// replace embedded entries for the same store.
func LoadCatalogWithModels(path string) (*Catalog, error) {
	base, err := LoadCatalog()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog: %w", err)
	}

	extra, err := parseCatalog(data)
	if err != nil {
		return nil, err
	}

	merged := &Catalog{
		Layouts: mergeLayouts(base.Layouts, extra.Layouts),
		Models:  append(append([]*Model{}, base.Models...), extra.Models...),
	}
	merged.buildIndex()
	return merged, nil
}

func mergeLayouts(base, extra []*Layout) []*Layout {
	out := append([]*Layout{}, base...)
	for _, l := range extra {
		replaced := false
		for i, b := range out {
			if b.Store == l.Store {
				out[i], replaced = l, true
			}
		}
		if !replaced {
			out = append(out, l)
		}
	}
	return out
}

func parseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	c.buildIndex()
	return &c, nil
}

func (c *Catalog) buildIndex() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = make(map[string]*Model, len(c.Models))
	for _, m := range c.Models {
		c.index[strings.ToUpper(m.HWC)] = m
	}
}

// Layout returns the layout entry for a store name ("fsys" or "scfg").
func (c *Catalog) Layout(store string) (*Layout, bool) {
	for _, l := range c.Layouts {
		if l.Store == store {
			return l, true
		}
	}
	return nil, false
}

// Model looks up a hardware configuration code.
func (c *Catalog) Model(hwc Text) (*Model, bool) {
	if !hwc.Valid {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.index[strings.ToUpper(hwc.Value)]
	return m, ok
}

// Deviations lists how a store found at base with the given size differs
// from the layout. Zero layout fields are not checked.
func (l *Layout) Deviations(base, size int) []string {
	var out []string
	if l.ExpectedBase != 0 && int64(base) != l.ExpectedBase {
		out = append(out, fmt.Sprintf("%s at 0x%X, expected 0x%X", l.Name, base, l.ExpectedBase))
	}
	if l.Size != 0 && int64(size) != l.Size {
		out = append(out, fmt.Sprintf("%s spans 0x%X bytes, expected 0x%X", l.Name, size, l.Size))
	}
	if l.CRCOffset != 0 && l.CRCOffset+FsysCRCSize > int64(size) {
		out = append(out, fmt.Sprintf("%s is too short for a CRC field at 0x%X", l.Name, l.CRCOffset))
	}
	return out
}

// String returns a human-readable representation of the layout.
func (l *Layout) String() string {
	if l.ExpectedBase != 0 {
		return fmt.Sprintf("%s (%s) size 0x%X at 0x%X", l.Name, l.Signature, l.Size, l.ExpectedBase)
	}
	return fmt.Sprintf("%s (%s) size 0x%X", l.Name, l.Signature, l.Size)
}
