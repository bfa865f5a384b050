// civictrack/database/store.go
package database

import (
	"errors"

	"civictrack/models"
)

// Sentinel errors. Handlers map these onto HTTP status codes with
// errors.Is, so store implementations must return them (possibly
// wrapped) rather than ad-hoc equivalents.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidStatus = errors.New("invalid status")
	ErrValidation    = errors.New("validation failed")
	ErrEmailTaken    = errors.New("email already registered")
)

// Store is the persistence boundary. DatabaseService (SQLite) and
// MemoryStore implement it with identical observable behavior; the
// conformance tests in store_test.go run against both.
type Store interface {
	// Issues
	CreateIssue(in *models.NewIssue) (int64, error)
	IssueByID(id int64) (*models.Issue, error)
	ListIssues(filter models.IssueFilter) ([]models.Issue, error)
	NearbyIssues(lat, lng, radiusKm float64, status models.Status, category models.Category) ([]models.NearbyIssue, error)

	// Moderation
	UpdateStatus(id int64, status models.Status, actorID *int64) error
	SetHidden(id int64, hidden bool) error
	FlagIssue(issueID, userID int64) (count int, hidden bool, err error)

	// Audit log
	StatusHistory(issueID int64) ([]models.StatusLogEntry, error)

	// Users
	CreateUser(in *models.NewUser) (*models.User, error)
	UserByEmail(email string) (*models.User, error)
	UserByID(id int64) (*models.User, error)
	UpdateUser(id int64, firstName, lastName, phone string) error
	BanUser(id int64, banned bool) error
	ListUsers() ([]models.User, error)

	// Analytics
	Analytics() (*models.Analytics, error)

	Close() error
}
