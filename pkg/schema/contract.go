// Package schema defines the declarative field-mapping contracts that
// normalize adapter-native column names into the engine's canonical table
// schema. Adapters integrate only through these contracts, so the rest of
// the pipeline never sees a source-specific column name.
package schema

import (
	"sort"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

// Contract describes a canonical schema and how external sources map onto
// it. Mappings are keyed by source type, then external name to canonical
// name.
type Contract struct {
	Required []string
	Optional []string
	Mappings map[string]map[string]string
}

// Validate checks that the table carries every required column. Failure
// names both the expected and the actual column sets.
func (c *Contract) Validate(tbl *table.Table) error {
	var missing []string
	for _, name := range c.Required {
		if !tbl.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Newf(errors.ErrorTypeValidation,
			"schema contract violation: missing required columns %v, expected %v, got %v",
			missing, c.Required, tbl.Columns()).
			WithDetail("missing", missing).
			WithDetail("expected", c.Required).
			WithDetail("actual", tbl.Columns())
	}
	return nil
}

// FromExternal renames a source-native table into the canonical schema.
// Sources without a registered mapping pass through unchanged.
func (c *Contract) FromExternal(tbl *table.Table, source string) *table.Table {
	mapping, ok := c.Mappings[source]
	if !ok {
		return tbl.Clone()
	}
	return tbl.Rename(mapping)
}

// ToExternal renames a canonical table back into a source's native names.
func (c *Contract) ToExternal(tbl *table.Table, target string) *table.Table {
	mapping, ok := c.Mappings[target]
	if !ok {
		return tbl.Clone()
	}
	inverse := make(map[string]string, len(mapping))
	for external, canonical := range mapping {
		inverse[canonical] = external
	}
	return tbl.Rename(inverse)
}

// AllColumns returns required then optional columns.
func (c *Contract) AllColumns() []string {
	out := make([]string, 0, len(c.Required)+len(c.Optional))
	out = append(out, c.Required...)
	out = append(out, c.Optional...)
	return out
}

// ResolveColumn finds the actual column in a table for a canonical field,
// trying the source-specific external name first, then the canonical name,
// then every known alias. Transforms use this to work against data from
// any source without hardcoding names.
func (c *Contract) ResolveColumn(tbl *table.Table, canonical, source string) (string, error) {
	var candidates []string

	if source != "" {
		if mapping, ok := c.Mappings[source]; ok {
			for external, std := range mapping {
				if std == canonical {
					candidates = append(candidates, external)
				}
			}
			sort.Strings(candidates)
		}
	}
	candidates = append(candidates, canonical)
	var aliases []string
	for _, mapping := range c.Mappings {
		for external, std := range mapping {
			if std == canonical && !contains(candidates, external) && !contains(aliases, external) {
				aliases = append(aliases, external)
			}
		}
	}
	sort.Strings(aliases)
	candidates = append(candidates, aliases...)

	for _, name := range candidates {
		if tbl.HasColumn(name) {
			return name, nil
		}
	}
	return "", errors.Newf(errors.ErrorTypeValidation,
		"cannot resolve column %q, tried %v, available %v", canonical, candidates, tbl.Columns())
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Metrics is the canonical business-metrics schema: one row per product
// per day, with the metric columns every model consumes.
var Metrics = &Contract{
	Required: []string{"product_id", "date", "sales_volume", "revenue"},
	Optional: []string{
		"name",
		"category",
		"price",
		"inventory_level",
		"customer_engagement",
		"metrics_source",
		"retrieval_timestamp",
	},
	Mappings: map[string]map[string]string{
		"simulator": {
			"asin":          "product_id",
			"ordered_units": "sales_volume",
		},
		"file": {
			"sku":           "product_id",
			"units_sold":    "sales_volume",
			"total_revenue": "revenue",
		},
	},
}

// Products is the canonical product-catalog schema.
var Products = &Contract{
	Required: []string{"product_id"},
	Optional: []string{"name", "category", "price"},
	Mappings: map[string]map[string]string{
		"simulator": {"asin": "product_id"},
		"file":      {"sku": "product_id", "product_name": "name"},
	},
}
