package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// User mirrors an account in the external identity provider. The provider
// owns authentication; this row only anchors memberships locally.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ClerkID   string    `json:"clerk_id" gorm:"uniqueIndex;size:128"`
	Email     string    `json:"email" gorm:"uniqueIndex"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Workspace is the tenant. RetellAPIKey holds the provider credential in
// encrypted form only; plaintext is never persisted or serialized.
type Workspace struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name"`
	OwnerID      string    `json:"owner_id" gorm:"index;size:128"` // identity-provider account id
	Slug         string    `json:"slug" gorm:"uniqueIndex;size:128"`
	RetellAPIKey string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WorkspaceMember links one account to one workspace. A user belongs to a
// given workspace at most once.
type WorkspaceMember struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	WorkspaceID uint      `json:"workspace_id" gorm:"uniqueIndex:idx_workspace_user"`
	Workspace   Workspace `json:"workspace" gorm:"foreignKey:WorkspaceID"`
	UserID      uint      `json:"user_id" gorm:"uniqueIndex:idx_workspace_user"`
	User        User      `json:"user" gorm:"foreignKey:UserID"`
	Role        string    `json:"role" gorm:"default:'VIEWER';size:16"` // OWNER, ADMIN, VIEWER
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Agent is the local mirror of an imported remote voice agent. Config is an
// opaque snapshot of the last-known remote representation; the remote system
// is the source of truth and the mirror may go stale between updates.
// Status is local-only and never sourced from the provider.
type Agent struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	WorkspaceID   uint      `json:"workspace_id" gorm:"uniqueIndex:idx_workspace_retell_agent"`
	Workspace     Workspace `json:"-" gorm:"foreignKey:WorkspaceID"`
	RetellAgentID string    `json:"retell_agent_id" gorm:"uniqueIndex:idx_workspace_retell_agent;size:128"`
	Name          string    `json:"name"`
	Status        string    `json:"status" gorm:"default:'inactive'"`
	Config        JSON      `json:"config" gorm:"type:json"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// JSON is a generic JSON field type for provider-shaped blobs whose schema
// is not ours to pin down.
type JSON []byte

// Value implements the driver.Valuer interface
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements the sql.Scanner interface
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = JSON(v)
		return nil
	case string:
		*j = JSON(v)
		return nil
	default:
		return errors.New("cannot scan into JSON")
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = JSON(data)
	return nil
}

// MarshalJSON implements the json.Marshaler interface
func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// Lookup reads a top-level string field out of the blob. Missing or
// non-string values return "".
func (j JSON) Lookup(field string) string {
	if len(j) == 0 {
		return ""
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(j, &m); err != nil {
		return ""
	}
	var s string
	if raw, ok := m[field]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}
