package data

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Setting represents a configuration setting stored in the database
type Setting struct {
	ID     uint   `gorm:"primaryKey"`
	Name   string `gorm:"size:64;uniqueIndex;not null"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null"`
}

var (
	settingsCache map[string]string
	settingsMu    sync.RWMutex
)

// LoadSettings loads all active settings from the database into cache
func LoadSettings(ctx context.Context, db *gorm.DB) error {
	var settings []Setting
	if err := db.WithContext(ctx).Where("active = ?", 1).Find(&settings).Error; err != nil {
		return err
	}

	settingsMu.Lock()
	defer settingsMu.Unlock()

	settingsCache = make(map[string]string, len(settings))
	for _, s := range settings {
		settingsCache[s.Name] = s.Value
	}

	return nil
}

// GetSetting retrieves a setting value from cache (call LoadSettings first)
func GetSetting(name string) string {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settingsCache[name]
}

// ResetSettings drops the cache.
func ResetSettings() {
	settingsMu.Lock()
	settingsCache = nil
	settingsMu.Unlock()
}

// Migrate creates the settings table plus any extra models.
func Migrate(db *gorm.DB, models ...any) error {
	return db.AutoMigrate(append([]any{&Setting{}}, models...)...)
}
