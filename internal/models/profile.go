package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// PrivacySettings controls which contact fields unrelated viewers may see.
// The zero value hides everything.
type PrivacySettings struct {
	ShowEmail         bool `json:"showEmail"`
	ShowPhone         bool `json:"showPhone"`
	ShowExactLocation bool `json:"showExactLocation"`
}

// Scan decodes the stored JSON object. NULL, unknown types and malformed
// payloads all decode to the zero value.
func (p *PrivacySettings) Scan(value interface{}) error {
	*p = PrivacySettings{}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil
	}

	var decoded PrivacySettings
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	*p = decoded
	return nil
}

// Value encodes the settings as a JSON object.
func (p PrivacySettings) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type Profile struct {
	UserID       uint64                      `gorm:"primarykey" json:"user_id"`
	DisplayName  string                      `gorm:"type:varchar(100);not null" json:"display_name"`
	Bio          string                      `gorm:"type:text" json:"bio"`
	City         string                      `gorm:"type:varchar(255)" json:"city"`
	Neighborhood string                      `gorm:"type:varchar(255)" json:"neighborhood"`
	Phone        string                      `gorm:"type:varchar(50)" json:"phone"`
	Skills       datatypes.JSONSlice[string] `json:"skills"`
	Languages    datatypes.JSONSlice[string] `json:"languages"`
	Privacy      PrivacySettings             `gorm:"type:text" json:"privacy"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// NewProfile returns a profile with list fields initialised and the most
// restrictive privacy settings.
func NewProfile(userID uint64, displayName string) Profile {
	return Profile{
		UserID:      userID,
		DisplayName: displayName,
		Skills:      datatypes.NewJSONSlice([]string{}),
		Languages:   datatypes.NewJSONSlice([]string{}),
	}
}
