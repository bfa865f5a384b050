// civictrack/models/models.go
package models

import (
	"fmt"
	"strings"
	"time"

	"civictrack/config"

	"golang.org/x/crypto/bcrypt"
)

// --- Enumerations ---

// Category classifies an issue by the kind of civic problem it reports.
type Category string

const (
	CategoryRoads        Category = "roads"
	CategoryLighting     Category = "lighting"
	CategoryWater        Category = "water"
	CategoryCleanliness  Category = "cleanliness"
	CategorySafety       Category = "safety"
	CategoryObstructions Category = "obstructions"
)

// Categories lists every valid category, in display order.
var Categories = []Category{
	CategoryRoads, CategoryLighting, CategoryWater,
	CategoryCleanliness, CategorySafety, CategoryObstructions,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Status is an issue's lifecycle state. Transitions are deliberately
// unrestricted so an administrator can correct a mistaken change.
type Status string

const (
	StatusReported   Status = "reported"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

var Statuses = []Status{StatusReported, StatusInProgress, StatusResolved}

func (s Status) Valid() bool {
	return s == StatusReported || s == StatusInProgress || s == StatusResolved
}

// FilterAll is the sentinel query value meaning "no constraint".
const FilterAll = "all"

// --- Core Data Models ---

// Issue is a citizen-submitted report of a local problem.
type Issue struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     Category  `json:"category"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Address      string    `json:"address"`
	UserID       int64     `json:"-"`
	ReporterName string    `json:"reporterName"`
	Photos       []string  `json:"photos"`
	IsAnonymous  bool      `json:"isAnonymous"`
	Status       Status    `json:"status"`
	IsHidden     bool      `json:"isHidden"`
	FlagCount    int       `json:"flagCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NearbyIssue is an Issue annotated with its distance from a query center.
type NearbyIssue struct {
	Issue
	DistanceKm float64 `json:"distanceKm"`
}

// NewIssue carries the validated fields for issue creation.
type NewIssue struct {
	Title       string
	Description string
	Category    Category
	Latitude    float64
	Longitude   float64
	Address     string
	UserID      int64
	Photos      []string
	IsAnonymous bool
}

// Validate rejects out-of-range or empty required fields. The HTTP layer
// validates too, but the stores do not trust that they are the only caller.
func (in *NewIssue) Validate() error {
	if t := strings.TrimSpace(in.Title); t == "" || len(t) > config.MaxTitleLen {
		return fmt.Errorf("title must be 1-%d characters", config.MaxTitleLen)
	}
	if d := strings.TrimSpace(in.Description); d == "" || len(d) > config.MaxDescriptionLen {
		return fmt.Errorf("description must be 1-%d characters", config.MaxDescriptionLen)
	}
	if !in.Category.Valid() {
		return fmt.Errorf("invalid category %q", in.Category)
	}
	if in.Latitude < -90 || in.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", in.Latitude)
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", in.Longitude)
	}
	if len(in.Photos) > config.MaxPhotos {
		return fmt.Errorf("at most %d photos allowed", config.MaxPhotos)
	}
	return nil
}

// IssueFilter narrows ListIssues. Zero values impose no constraint.
type IssueFilter struct {
	Status     Status
	Category   Category
	OnlyHidden bool
}

// StatusLogEntry is one append-only audit record of a status change.
// A nil ChangedBy denotes a system-initiated transition.
type StatusLogEntry struct {
	ID            int64     `json:"id"`
	IssueID       int64     `json:"issueId"`
	Status        Status    `json:"status"`
	ChangedBy     *int64    `json:"changedBy"`
	ChangedByName string    `json:"changedByName,omitempty"`
	ChangedAt     time.Time `json:"changedAt"`
}

// Flag records a single user's objection to an issue. At most one live
// flag exists per (issue, user) pair; re-flagging refreshes CreatedAt.
type Flag struct {
	IssueID   int64     `json:"issueId"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// --- Users ---

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	IsBanned  bool      `json:"isBanned"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), config.BcryptCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) ComparePassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate)) == nil
}

// NewUser carries the fields for registration.
type NewUser struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

func (in *NewUser) Validate() error {
	if !strings.Contains(in.Email, "@") {
		return fmt.Errorf("invalid email address")
	}
	if len(in.Password) < config.MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", config.MinPasswordLen)
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return fmt.Errorf("first and last name are required")
	}
	return nil
}

// --- Analytics ---

type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// Analytics is the admin dashboard aggregate view.
type Analytics struct {
	TotalIssues   int             `json:"totalIssues"`
	RecentIssues  int             `json:"recentIssues"` // created in the last 7 days
	HiddenIssues  int             `json:"hiddenIssues"`
	CategoryStats []CategoryCount `json:"categoryStats"`
	StatusStats   []StatusCount   `json:"statusStats"`
}
