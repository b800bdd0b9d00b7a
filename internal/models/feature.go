package models

import "time"

// Feature is a release toggle evaluated per deployment stage.
type Feature struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Developer         string    `gorm:"size:100" json:"developer"`
	StagingEnabled    bool      `gorm:"not null;default:false" json:"staging_enabled"`
	ProductionEnabled bool      `gorm:"not null;default:false" json:"production_enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// EnabledFor returns the flag value for the given stage.
func (f *Feature) EnabledFor(staging bool) bool {
	if staging {
		return f.StagingEnabled
	}
	return f.ProductionEnabled
}

// LandingPage switches site-wide pages such as maintenance on and off.
type LandingPage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	IsActive  bool      `gorm:"not null;default:false" json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaintenancePage is the landing page that closes the API.
const MaintenancePage = "Maintenance"
