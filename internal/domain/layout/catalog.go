package layout

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/rpggio/gridlayout/internal/domain/region"
)

//go:embed defaults.yaml
var defaultCatalogYAML []byte

const fallbackRole = "default"

// RegionTemplate is a partial region used to seed new layouts.
type RegionTemplate struct {
	Type           region.Type    `yaml:"type"`
	Row            *int           `yaml:"row"`
	Col            *int           `yaml:"col"`
	RowSpan        int            `yaml:"row_span"`
	ColSpan        int            `yaml:"col_span"`
	Collapsed      bool           `yaml:"collapsed"`
	HiddenOnMobile bool           `yaml:"hidden_on_mobile"`
	Config         map[string]any `yaml:"config"`
}

// Catalog maps roles to their default region templates.
type Catalog struct {
	Roles map[string][]RegionTemplate `yaml:"roles"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded role catalog: %v", err))
	}
	return c
}

// LoadCatalogFile reads a catalog from a YAML file.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading role catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and checks a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(c.Roles[fallbackRole]) == 0 {
		return nil, fmt.Errorf("%w: missing %q role", ErrInvalidCatalog, fallbackRole)
	}
	for role, templates := range c.Roles {
		for i, tmpl := range templates {
			if !tmpl.Type.Valid() {
				return nil, fmt.Errorf("%w: role %s entry %d: unknown type %q", ErrInvalidCatalog, role, i, tmpl.Type)
			}
		}
	}
	return &c, nil
}

// RoleDefaults returns the templates for role, falling back to the default
// role when role is unknown.
func (c *Catalog) RoleDefaults(role string) []RegionTemplate {
	if templates, ok := c.Roles[strings.ToLower(strings.TrimSpace(role))]; ok {
		return templates
	}
	return c.Roles[fallbackRole]
}

// Place turns templates into non-overlapping regions. Position hints are
// honoured when they fit; everything else is auto-placed.
func Place(templates []RegionTemplate) ([]region.Region, error) {
	placed := make([]region.Region, 0, len(templates))
	for i, tmpl := range templates {
		size := region.DefaultSize(tmpl.Type)
		if tmpl.RowSpan > 0 {
			size.RowSpan = tmpl.RowSpan
		}
		if tmpl.ColSpan > 0 {
			size.ColSpan = tmpl.ColSpan
		}

		r := region.Region{
			ID:               uuid.NewString(),
			Type:             tmpl.Type,
			RowSpan:          size.RowSpan,
			ColSpan:          size.ColSpan,
			MinWidth:         region.MinPixels,
			MinHeight:        region.MinPixels,
			IsCollapsed:      tmpl.Collapsed,
			IsHiddenOnMobile: tmpl.HiddenOnMobile,
			DisplayOrder:     i,
		}
		if len(tmpl.Config) > 0 {
			cfg, err := json.Marshal(tmpl.Config)
			if err != nil {
				return nil, fmt.Errorf("encoding %s config: %w", tmpl.Type, err)
			}
			r.Config = cfg
		}

		fits := false
		if tmpl.Row != nil && tmpl.Col != nil {
			r.GridRow, r.GridCol = *tmpl.Row, *tmpl.Col
			fits = region.ValidateBounds(r) == nil && region.FindOverlap(r, placed) == nil
		}
		if !fits {
			row, col, err := region.FindFreeSlot(placed, r.RowSpan, r.ColSpan)
			if err != nil {
				return nil, fmt.Errorf("placing %s: %w", tmpl.Type, err)
			}
			r.GridRow, r.GridCol = row, col
		}
		placed = append(placed, r)
	}
	return placed, nil
}
