package models

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Setting represents a system setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer, float
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PixSettings is the runtime-editable configuration of the PIX payment
// engine. It is loaded from the settings table once at startup and kept in
// memory; admin updates write through to the table.
type PixSettings struct {
	WebhookEnabled   bool   `json:"webhook_enabled"`
	DynamicEnabled   bool   `json:"dynamic_enabled"`
	CopyPasteEnabled bool   `json:"copy_paste_enabled"`
	PixKey           string `json:"pix_key" validate:"max=120"`
	OpenPixAPIURL    string `json:"openpix_api_url" validate:"omitempty,url"`
	OpenPixAppID     string `json:"openpix_app_id" validate:"max=255"`
	ErrorMessage     string `json:"error_message" validate:"max=500"`
	mu               sync.RWMutex
}

// Global settings instance
var (
	pixSettings *PixSettings
	settingsMu  sync.RWMutex
)

// GetPixSettings returns the current PIX settings
func GetPixSettings() *PixSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	if pixSettings == nil {
		return &PixSettings{ErrorMessage: "Erro ao gerar PIX. Tente novamente."}
	}
	return pixSettings
}

// SetPixSettings replaces the in-memory settings. Intended for tests and
// for callers that already persisted the values.
func SetPixSettings(s *PixSettings) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	pixSettings = s
}

// LoadSettings loads settings from database into memory
func LoadSettings(db *gorm.DB) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	// Initialize with defaults
	pixSettings = &PixSettings{
		WebhookEnabled:   false,
		DynamicEnabled:   false,
		CopyPasteEnabled: false,
		ErrorMessage:     "Erro ao gerar PIX. Tente novamente.",
	}

	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	for _, setting := range settings {
		switch setting.Key {
		case "pix_webhook_enabled":
			pixSettings.WebhookEnabled = setting.Value == "true"
		case "pix_dynamic_enabled":
			pixSettings.DynamicEnabled = setting.Value == "true"
		case "pix_copy_paste_enabled":
			pixSettings.CopyPasteEnabled = setting.Value == "true"
		case "pix_key":
			pixSettings.PixKey = setting.Value
		case "openpix_api_url":
			pixSettings.OpenPixAPIURL = setting.Value
		case "openpix_app_id":
			pixSettings.OpenPixAppID = setting.Value
		case "pix_error_message":
			if setting.Value != "" {
				pixSettings.ErrorMessage = setting.Value
			}
		}
	}

	return nil
}

// SaveSettings validates and writes settings to the database, then swaps
// the in-memory instance.
func SaveSettings(db *gorm.DB, settings *PixSettings) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	settingsMap := map[string]interface{}{
		"pix_webhook_enabled":    fmt.Sprintf("%t", settings.WebhookEnabled),
		"pix_dynamic_enabled":    fmt.Sprintf("%t", settings.DynamicEnabled),
		"pix_copy_paste_enabled": fmt.Sprintf("%t", settings.CopyPasteEnabled),
		"pix_key":                settings.PixKey,
		"openpix_api_url":        settings.OpenPixAPIURL,
		"openpix_app_id":         settings.OpenPixAppID,
		"pix_error_message":      settings.ErrorMessage,
	}

	for key, value := range settingsMap {
		var setting Setting
		result := db.Where("setting_key = ?", key).First(&setting)

		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				setting = Setting{
					Key:   key,
					Value: fmt.Sprintf("%v", value),
					Type:  getSettingType(key),
				}
				if err := db.Create(&setting).Error; err != nil {
					return fmt.Errorf("failed to create setting %s: %w", key, err)
				}
			} else {
				return fmt.Errorf("failed to query setting %s: %w", key, result.Error)
			}
		} else {
			setting.Value = fmt.Sprintf("%v", value)
			if err := db.Save(&setting).Error; err != nil {
				return fmt.Errorf("failed to update setting %s: %w", key, err)
			}
		}
	}

	pixSettings = settings
	return nil
}

// getSettingType returns the type of a setting based on its key
func getSettingType(key string) string {
	switch key {
	case "pix_webhook_enabled", "pix_dynamic_enabled", "pix_copy_paste_enabled":
		return "boolean"
	default:
		return "string"
	}
}

// Validate validates the settings
func (s *PixSettings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// ToJSON converts settings to JSON
func (s *PixSettings) ToJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s)
}

// FromJSON loads settings from JSON
func (s *PixSettings) FromJSON(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Unmarshal(data, s)
}

// IsWebhookEnabled reports whether webhook ingestion is turned on.
func (s *PixSettings) IsWebhookEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.WebhookEnabled
}

// IsDynamicEnabled reports whether dynamic (OpenPix) charges are turned on.
func (s *PixSettings) IsDynamicEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.DynamicEnabled
}
