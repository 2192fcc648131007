package ranking

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/field-dispatch/internal/sla"
)

// MultiTechSkill is the generic capability rewarded by the skills bonus.
const MultiTechSkill = "multi_tech_rapid_response"

// Catalog holds the lookup tables used for skills and zone affinity.
type Catalog struct {
	// Requirements maps an intervention type to its required capability tags.
	Requirements map[string][]string `yaml:"requirements"`
	// Regions maps a crew zone label to the departments it groups.
	Regions map[string][]string `yaml:"regions"`
}

// DefaultCatalog returns the built-in tables.
func DefaultCatalog() *Catalog {
	return normalizeCatalog(&Catalog{
		Requirements: map[string][]string{
			"CORTE ENERGIA":            {"power_cut_inspection", "generator_switchover", "electrical_panel", MultiTechSkill},
			"CORTE FIBRA":              {"fiber_splicing", "otdr_testing", "fiber_route_survey"},
			"FALLA EQUIPO":             {"rf_equipment", "equipment_replacement", "site_commissioning"},
			"FALLA CLIMATIZACION":      {"hvac", "electrical_panel"},
			"MANTENIMIENTO PREVENTIVO": {"preventive_maintenance", "hvac"},
			"VANDALISMO":               {"security_assessment", "equipment_replacement", MultiTechSkill},
		},
		// CENTRO, NORTE and SUR are the Lima metro zones, the same labels the
		// SLA table treats as metropolitan. Provincial groupings carry PERU.
		Regions: map[string][]string{
			"LIMA":        {"LIMA", "CALLAO"},
			"CALLAO":      {"LIMA", "CALLAO"},
			"CENTRO":      {"LIMA", "CALLAO"},
			"NORTE":       {"LIMA", "CALLAO"},
			"SUR":         {"LIMA", "CALLAO"},
			"NORTE PERU":  {"TUMBES", "PIURA", "LAMBAYEQUE", "LA LIBERTAD", "CAJAMARCA", "ANCASH", "AMAZONAS"},
			"CENTRO PERU": {"JUNIN", "PASCO", "HUANUCO", "HUANCAVELICA", "AYACUCHO", "ICA"},
			"SUR PERU":    {"AREQUIPA", "MOQUEGUA", "TACNA", "PUNO", "CUSCO", "APURIMAC", "MADRE DE DIOS"},
			"ORIENTE":     {"LORETO", "UCAYALI", "SAN MARTIN"},
		},
	})
}

// LoadCatalog reads a YAML catalog from path. Sections missing from the file
// keep their built-in values.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var override Catalog
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	base := DefaultCatalog()
	if len(override.Requirements) > 0 {
		base.Requirements = override.Requirements
	}
	if len(override.Regions) > 0 {
		base.Regions = override.Regions
	}
	return normalizeCatalog(base), nil
}

// RequiredSkills returns the capability tags for an intervention type.
func (c *Catalog) RequiredSkills(interventionType string) []string {
	return c.Requirements[sla.NormalizeLabel(interventionType)]
}

// SameRegion reports whether department belongs to the crew zone's grouping.
func (c *Catalog) SameRegion(crewZone, department string) bool {
	dept := sla.NormalizeLabel(department)
	for _, candidate := range c.Regions[sla.NormalizeLabel(crewZone)] {
		if candidate == dept {
			return true
		}
	}
	return false
}

func normalizeCatalog(c *Catalog) *Catalog {
	out := &Catalog{
		Requirements: make(map[string][]string, len(c.Requirements)),
		Regions:      make(map[string][]string, len(c.Regions)),
	}
	for kind, skills := range c.Requirements {
		tags := make([]string, 0, len(skills))
		for _, s := range skills {
			tags = append(tags, normalizeTag(s))
		}
		out.Requirements[sla.NormalizeLabel(kind)] = tags
	}
	for zone, depts := range c.Regions {
		labels := make([]string, 0, len(depts))
		for _, d := range depts {
			labels = append(labels, sla.NormalizeLabel(d))
		}
		out.Regions[sla.NormalizeLabel(zone)] = labels
	}
	return out
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[normalizeTag(t)] = struct{}{}
	}
	return set
}
