// Package models defines the domain models for the compliance hub backend.
package models

import (
	"time"
)

// CategoryType distinguishes application-level from platform-level categories.
type CategoryType string

const (
	CategoryTypeApplication CategoryType = "application"
	CategoryTypePlatform    CategoryType = "platform"
)

// ItemStatus represents the governance state of a checklist item.
type ItemStatus string

const (
	ItemStatusNotStarted ItemStatus = "Not Started"
	ItemStatusInProgress ItemStatus = "In Progress"
	ItemStatusCompleted  ItemStatus = "Completed"
	ItemStatusVerified   ItemStatus = "Verified"
)

// Platform represents a hosting platform that applications run on.
type Platform struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	Owner       *string   `json:"owner,omitempty" db:"owner"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Application represents a software system under governance.
type Application struct {
	ID          string  `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Status      string  `json:"status" db:"status"` // 'In Review', 'Approved', 'Onboarded', 'Production'
	Description *string `json:"description,omitempty" db:"description"`
	Owner       *string `json:"owner,omitempty" db:"owner"`
	PlatformID  *string `json:"platform_id,omitempty" db:"platform_id"`

	// Source repository
	RepositoryURL *string `json:"repository_url,omitempty" db:"repository_url"`
	CommitID      *string `json:"commit_id,omitempty" db:"commit_id"`

	// Technical metadata consulted by validation rules
	AppType         *string `json:"app_type,omitempty" db:"app_type"` // 'Batch', 'UI', 'API'
	TechnologyStack *string `json:"technology_stack,omitempty" db:"technology_stack"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Category groups checklist items. An application is associated with
// categories of both types; the association carries the category type.
type Category struct {
	ID           string          `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	CategoryType CategoryType    `json:"category_type" db:"category_type"`
	Items        []ChecklistItem `json:"items,omitempty"`
}

// ChecklistItem is a single governance requirement tracked per application.
// The description doubles as the business key used by the rule table and the
// reconciler; it is unique within a category.
type ChecklistItem struct {
	ID            string     `json:"id" db:"id"`
	CategoryID    string     `json:"category_id" db:"category_id"`
	ApplicationID *string    `json:"application_id,omitempty" db:"application_id"`
	PlatformID    *string    `json:"platform_id,omitempty" db:"platform_id"`
	Description   string     `json:"description" db:"description"`
	Status        ItemStatus `json:"status" db:"status"`
	Evidence      *string    `json:"evidence,omitempty" db:"evidence"`
	Comments      *string    `json:"comments,omitempty" db:"comments"`
	LastUpdated   time.Time  `json:"last_updated" db:"last_updated"`
}
