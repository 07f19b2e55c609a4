// services/partner_service.go
package services

import (
	"context"
	"fmt"
	"os"

	"partnership-sync/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// PartnerFile is the YAML seed format:
//
//	partners:
//	  - code: GOVX01
//	    name: Dinas Koperasi
//	    is_government: true
type PartnerFile struct {
	Partners []models.Partner `yaml:"partners"`
}

// LoadPartnersFile reads and validates a partner seed file.
func LoadPartnersFile(path string) ([]models.Partner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read partners file: %w", err)
	}
	return ParsePartners(data)
}

// ParsePartners decodes partner seed YAML. Codes must be unique after
// normalization.
func ParsePartners(data []byte) ([]models.Partner, error) {
	var f PartnerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse partners yaml: %w", err)
	}
	seen := make(map[string]bool, len(f.Partners))
	for i, p := range f.Partners {
		code := NormalizeCode(p.Code)
		if code == "" {
			return nil, fmt.Errorf("partner #%d has no code", i+1)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("partner %s has no name", code)
		}
		if seen[code] {
			return nil, fmt.Errorf("partner code %s listed twice", code)
		}
		seen[code] = true
		f.Partners[i].Code = code
	}
	return f.Partners, nil
}

// ListPartners returns every partner ordered by name.
func ListPartners(ctx context.Context, db *gorm.DB) ([]models.Partner, error) {
	var partners []models.Partner
	if err := db.WithContext(ctx).Order("name ASC").Find(&partners).Error; err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	return partners, nil
}
