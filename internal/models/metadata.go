package models

import (
	"strings"
)

// Categories lists the agent categories offered at registration.
var Categories = []string{
	"Conversational",
	"Analytics",
	"Creative",
	"Finance",
	"Healthcare",
	"Education",
	"Gaming",
	"Other",
}

// IsValidCategory reports whether c is one of Categories (case-insensitive).
func IsValidCategory(c string) bool {
	for _, known := range Categories {
		if strings.EqualFold(known, c) {
			return true
		}
	}
	return false
}

// MetadataDetails holds the descriptive block of an agent document.
type MetadataDetails struct {
	Version      string   `json:"version"`
	Author       string   `json:"author"`
	Requirements []string `json:"requirements"`
	Capabilities []string `json:"capabilities"`
}

// AgentMetadata is the off-chain document an agent's content reference
// points to.
type AgentMetadata struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Endpoint    string          `json:"endpoint"`
	Tags        []string        `json:"tags"`
	Metadata    MetadataDetails `json:"metadata"`
	Image       *string         `json:"image"`
	CreatedAt   string          `json:"createdAt"`
	Owner       string          `json:"owner"`
}

// MissingFields returns the names of required fields that are blank.
func (m *AgentMetadata) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(m.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(m.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(m.Category) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(m.Endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	return missing
}
