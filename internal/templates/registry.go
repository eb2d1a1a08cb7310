package templates

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/schema"
)

//go:embed templates.yaml
var defaultTemplates []byte

// ErrTemplateNotFound is returned for marketplaces without a registered template
var ErrTemplateNotFound = errors.New("marketplace template not found")

// Registry holds the current template of every marketplace. Entries are
// replaced wholesale on update and handed out as copies, so readers never
// observe a partially updated template.
type Registry struct {
	mu        sync.RWMutex
	templates map[models.MarketplaceKey]*models.MarketplaceTemplate
}

// NewRegistry loads the built-in marketplace templates
func NewRegistry(lib *schema.Library) (*Registry, error) {
	return LoadRegistry(lib, defaultTemplates)
}

// LoadRegistryFile loads templates from a YAML file on disk
func LoadRegistryFile(lib *schema.Library, path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}
	return LoadRegistry(lib, data)
}

// LoadRegistry parses a YAML template document
func LoadRegistry(lib *schema.Library, data []byte) (*Registry, error) {
	var doc templateDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if len(doc.Marketplaces) == 0 {
		return nil, errors.New("templates document defines no marketplaces")
	}

	r := &Registry{templates: make(map[models.MarketplaceKey]*models.MarketplaceTemplate)}
	for _, spec := range doc.Marketplaces {
		tmpl, err := spec.build(lib)
		if err != nil {
			return nil, err
		}
		if _, dup := r.templates[tmpl.Marketplace]; dup {
			return nil, fmt.Errorf("marketplace %s defined more than once", tmpl.Marketplace)
		}
		r.templates[tmpl.Marketplace] = tmpl
	}
	return r, nil
}

// Get returns a copy of the current template of a marketplace
func (r *Registry) Get(key models.MarketplaceKey) (*models.MarketplaceTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl, ok := r.templates[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}
	return tmpl.Clone(), nil
}

// ListSupportedMarketplaces returns the marketplaces that have a template
func (r *Registry) ListSupportedMarketplaces() []models.MarketplaceKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var keys []models.MarketplaceKey
	for _, k := range models.AllMarketplaces() {
		if _, ok := r.templates[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Replace installs a template as the current version of its marketplace
func (r *Registry) Replace(tmpl *models.MarketplaceTemplate) error {
	if err := validateTemplate(tmpl); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[tmpl.Marketplace] = tmpl.Clone()
	return nil
}

// UpdateTemplate creates a new version of a marketplace template: the current
// template is copied, the update merged in, the version bumped and the
// registry entry replaced. The previous version is not retained.
func (r *Registry) UpdateTemplate(key models.MarketplaceKey, update TemplateUpdate) (*models.MarketplaceTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.templates[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}

	next := current.Clone()
	update.apply(next)
	next.Version = BumpVersion(current.Version)

	if err := validateTemplate(next); err != nil {
		return nil, err
	}
	r.templates[key] = next
	return next.Clone(), nil
}

var trailingNumber = regexp.MustCompile(`(\d+)$`)

// BumpVersion increments the trailing numeric segment of a version string.
// Versions without one get ".1" appended.
func BumpVersion(version string) string {
	if version == "" {
		return "1"
	}
	loc := trailingNumber.FindStringIndex(version)
	if loc == nil {
		return version + ".1"
	}
	n, err := strconv.ParseUint(version[loc[0]:], 10, 64)
	if err != nil {
		return version + ".1"
	}
	return version[:loc[0]] + strconv.FormatUint(n+1, 10)
}

func validateTemplate(t *models.MarketplaceTemplate) error {
	if t == nil {
		return errors.New("template is nil")
	}
	if !t.Marketplace.IsValid() {
		return fmt.Errorf("template %q has unsupported marketplace %q", t.ID, t.Marketplace)
	}
	if len(t.Attributes) == 0 {
		return fmt.Errorf("template %s has no attributes", t.Marketplace)
	}
	seen := make(map[string]bool, len(t.Attributes))
	for _, a := range t.Attributes {
		if a.Name == "" {
			return fmt.Errorf("template %s has an unnamed attribute", t.Marketplace)
		}
		if seen[a.Name] {
			return fmt.Errorf("template %s declares attribute %s twice", t.Marketplace, a.Name)
		}
		seen[a.Name] = true
		if !a.Type.IsValid() {
			return fmt.Errorf("template %s attribute %s has invalid type %q", t.Marketplace, a.Name, a.Type)
		}
		if a.Validation != nil && a.Validation.Pattern != "" {
			if _, err := regexp.Compile(a.Validation.Pattern); err != nil {
				return fmt.Errorf("template %s attribute %s has invalid pattern: %w", t.Marketplace, a.Name, err)
			}
		}
	}
	return nil
}
