package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"report_worker/core/domain"
)

// Catalog lists the channels to search and the agencies to report on.
type Catalog struct {
	Channels []string               `yaml:"channels"`
	Agencies []domain.AgencyProfile `yaml:"agencies"`
}

var defaultChannels = []string{
	"boston",
	"massachusetts",
	"cambridge",
	"MassachusettsUSA",
	"CambridgeMA",
}

var defaultAgencies = []string{
	"Department of Public Health",
	"MassHealth",
	"Massachusetts State Police",
	"Massachusetts Bay Transportation Authority (MBTA)",
	"Department of Revenue",
	"Department of Elementary and Secondary Education",
	"Department of Environmental Protection",
	"Massachusetts Emergency Management Agency (MEMA)",
	"Department of Unemployment Assistance",
	"Department of Children and Families",
}

// DefaultCatalog returns the built-in Massachusetts catalog.
func DefaultCatalog() *Catalog {
	c := &Catalog{Channels: append([]string(nil), defaultChannels...)}
	for _, name := range defaultAgencies {
		c.Agencies = append(c.Agencies, domain.AgencyProfile{Name: name})
	}
	return c
}

// LoadCatalog reads a YAML catalog. An empty path yields the defaults; missing
// sections in the file fall back to the default section.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agencies file: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse agencies file %s: %w", path, err)
	}

	defaults := DefaultCatalog()
	if len(c.Channels) == 0 {
		c.Channels = defaults.Channels
	}
	if len(c.Agencies) == 0 {
		c.Agencies = defaults.Agencies
	}

	seen := make(map[string]bool, len(c.Agencies))
	for i := range c.Agencies {
		name := strings.TrimSpace(c.Agencies[i].Name)
		if name == "" {
			return nil, fmt.Errorf("agencies file %s: agency %d has no name", path, i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("agencies file %s: duplicate agency %q", path, name)
		}
		seen[name] = true
		c.Agencies[i].Name = name
	}
	return &c, nil
}

// AgencyNames returns agency names in catalog order.
func (c *Catalog) AgencyNames() []string {
	names := make([]string, 0, len(c.Agencies))
	for _, a := range c.Agencies {
		names = append(names, a.Name)
	}
	return names
}

// Profiles returns the agencies keyed by name.
func (c *Catalog) Profiles() map[string]domain.AgencyProfile {
	profiles := make(map[string]domain.AgencyProfile, len(c.Agencies))
	for _, a := range c.Agencies {
		profiles[a.Name] = a
	}
	return profiles
}
