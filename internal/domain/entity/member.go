package entity

import (
	"strings"
	"time"
)

// Member is a roster entry of an organization
type Member struct {
	ID             string    `json:"id" yaml:"id"`
	OrganizationID string    `json:"organization_id" yaml:"organizationId"`
	DisplayName    string    `json:"display_name" yaml:"displayName"`
	Roles          []string  `json:"roles" yaml:"roles"`
	IsActive       bool      `json:"is_active" yaml:"isActive"`
	IsAdmin        bool      `json:"is_admin" yaml:"isAdmin"`
	LarkOpenID     string    `json:"lark_open_id,omitempty" yaml:"larkOpenId,omitempty"`
	UpdatedAt      time.Time `json:"updated_at" yaml:"-"`
}

// HasRole matches role names or ids case-insensitively
func (m *Member) HasRole(role string) bool {
	role = strings.TrimSpace(role)
	for _, r := range m.Roles {
		if strings.EqualFold(strings.TrimSpace(r), role) {
			return true
		}
	}
	return false
}
