package seed

import (
	"context"
	_ "embed"
	"fmt"

	"jnestagram/internal/models"
	"jnestagram/internal/repository"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed catalogue.yaml
var catalogueYAML []byte

// Catalogue is the reference data every environment needs: the tag sidebar,
// the selectable countries and the known landing pages.
type Catalogue struct {
	Tags []struct {
		Name  string `yaml:"name"`
		Slug  string `yaml:"slug"`
		Order *int   `yaml:"order"`
	} `yaml:"tags"`
	Countries []struct {
		Name string `yaml:"name"`
		Abbr string `yaml:"abbr"`
	} `yaml:"countries"`
	LandingPages []string `yaml:"landing_pages"`
}

// LoadCatalogue parses the embedded catalogue.
func LoadCatalogue() (*Catalogue, error) {
	return parseCatalogue(catalogueYAML)
}

func parseCatalogue(raw []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	seen := make(map[string]bool, len(c.Tags))
	for _, t := range c.Tags {
		if t.Name == "" || t.Slug == "" {
			return nil, fmt.Errorf("catalogue tag %q: name and slug are required", t.Slug)
		}
		if seen[t.Slug] {
			return nil, fmt.Errorf("catalogue tag %q: duplicate slug", t.Slug)
		}
		seen[t.Slug] = true
	}
	return &c, nil
}

// TagModels converts the catalogue tags to rows.
func (c *Catalogue) TagModels() []models.Tag {
	tags := make([]models.Tag, 0, len(c.Tags))
	for _, t := range c.Tags {
		tags = append(tags, models.Tag{Name: t.Name, Slug: t.Slug, Ordering: t.Order})
	}
	return tags
}

// Apply writes the catalogue. Tags are upserted by slug, countries by name,
// and landing pages are created switched off; existing pages keep their state.
func (c *Catalogue) Apply(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewTagRepository(tx).Upsert(ctx, c.TagModels()); err != nil {
			return fmt.Errorf("upsert tags: %w", err)
		}
		for _, ct := range c.Countries {
			country := models.Country{Name: ct.Name}
			err := tx.Where(models.Country{Name: ct.Name}).
				Attrs(models.Country{Abbr: ct.Abbr, IsActive: true}).
				FirstOrCreate(&country).Error
			if err != nil {
				return fmt.Errorf("country %s: %w", ct.Name, err)
			}
		}
		for _, name := range c.LandingPages {
			page := models.LandingPage{Name: name}
			if err := tx.Where(models.LandingPage{Name: name}).FirstOrCreate(&page).Error; err != nil {
				return fmt.Errorf("landing page %s: %w", name, err)
			}
		}
		return nil
	})
}
