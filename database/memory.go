// civictrack/database/memory.go
package database

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"civictrack/config"
	"civictrack/models"
	"civictrack/utils"
)

// MemoryStore is an in-process Store used when no database file is
// wanted (ephemeral deployments, tests). It mirrors DatabaseService
// behavior exactly; the shared conformance suite keeps the two honest.
type MemoryStore struct {
	mu     sync.Mutex
	logger *slog.Logger

	issues     map[int64]*models.Issue
	statusLogs []models.StatusLogEntry
	flags      map[int64]map[int64]time.Time
	users      map[int64]*models.User

	nextIssueID int64
	nextLogID   int64
	nextUserID  int64
}

// NewMemoryStore creates an empty store seeded with the default admin.
func NewMemoryStore(adminPassword string, logger *slog.Logger) (*MemoryStore, error) {
	ms := &MemoryStore{
		logger: logger,
		issues: make(map[int64]*models.Issue),
		flags:  make(map[int64]map[int64]time.Time),
		users:  make(map[int64]*models.User),
	}

	admin := &models.User{
		Email:     utils.GetEnv("CIVICTRACK_ADMIN_EMAIL", config.DefaultAdminEmail),
		Password:  adminPassword,
		FirstName: "System",
		LastName:  "Administrator",
		Role:      models.RoleAdmin,
	}
	if err := admin.HashPassword(); err != nil {
		return nil, err
	}
	now := utils.GetSQLTime()
	ms.nextUserID++
	admin.ID = ms.nextUserID
	admin.CreatedAt = now
	admin.UpdatedAt = now
	ms.users[admin.ID] = admin

	logger.Info("In-memory store initialized", "admin", admin.Email)
	return ms, nil
}

func (ms *MemoryStore) Close() error { return nil }

// reporterName resolves the display name shown for an issue. Must be
// called with the lock held.
func (ms *MemoryStore) reporterName(issue *models.Issue) string {
	if issue.IsAnonymous {
		return "Anonymous"
	}
	if u, ok := ms.users[issue.UserID]; ok {
		if name := u.DisplayName(); name != "" {
			return name
		}
	}
	return "Anonymous"
}

// snapshot copies an issue with its derived fields filled in. Must be
// called with the lock held.
func (ms *MemoryStore) snapshot(issue *models.Issue) models.Issue {
	out := *issue
	out.ReporterName = ms.reporterName(issue)
	out.FlagCount = len(ms.flags[issue.ID])
	out.Photos = append([]string{}, issue.Photos...)
	return out
}

// Newest first; equal timestamps keep insertion order.
func sortIssuesNewestFirst(issues []models.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].CreatedAt.Equal(issues[j].CreatedAt) {
			return issues[i].ID < issues[j].ID
		}
		return issues[i].CreatedAt.After(issues[j].CreatedAt)
	})
}

// --- Issues ---

func (ms *MemoryStore) CreateIssue(in *models.NewIssue) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := utils.GetSQLTime()
	ms.nextIssueID++
	issue := &models.Issue{
		ID:          ms.nextIssueID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Address:     in.Address,
		UserID:      in.UserID,
		Photos:      append([]string{}, in.Photos...),
		IsAnonymous: in.IsAnonymous,
		Status:      models.StatusReported,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ms.issues[issue.ID] = issue
	ms.appendLog(issue.ID, models.StatusReported, nil, now)
	return issue.ID, nil
}

// appendLog must be called with the lock held.
func (ms *MemoryStore) appendLog(issueID int64, status models.Status, actorID *int64, at time.Time) {
	ms.nextLogID++
	ms.statusLogs = append(ms.statusLogs, models.StatusLogEntry{
		ID:        ms.nextLogID,
		IssueID:   issueID,
		Status:    status,
		ChangedBy: actorID,
		ChangedAt: at,
	})
}

func (ms *MemoryStore) IssueByID(id int64) (*models.Issue, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	issue, ok := ms.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := ms.snapshot(issue)
	return &out, nil
}

func (ms *MemoryStore) ListIssues(filter models.IssueFilter) ([]models.Issue, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := []models.Issue{}
	for _, issue := range ms.issues {
		if filter.Status != "" && string(filter.Status) != models.FilterAll && issue.Status != filter.Status {
			continue
		}
		if filter.Category != "" && string(filter.Category) != models.FilterAll && issue.Category != filter.Category {
			continue
		}
		if filter.OnlyHidden && !issue.IsHidden {
			continue
		}
		out = append(out, ms.snapshot(issue))
	}
	sortIssuesNewestFirst(out)
	return out, nil
}

func (ms *MemoryStore) NearbyIssues(lat, lng, radiusKm float64, status models.Status, category models.Category) ([]models.NearbyIssue, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	candidates := []models.Issue{}
	for _, issue := range ms.issues {
		if issue.IsHidden {
			continue
		}
		candidates = append(candidates, ms.snapshot(issue))
	}
	sortIssuesNewestFirst(candidates)
	return nearbyFilter(candidates, lat, lng, radiusKm, status, category), nil
}

// --- Moderation ---

func (ms *MemoryStore) UpdateStatus(id int64, status models.Status, actorID *int64) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	issue, ok := ms.issues[id]
	if !ok {
		return ErrNotFound
	}
	now := utils.GetSQLTime()
	issue.Status = status
	issue.UpdatedAt = now
	ms.appendLog(id, status, actorID, now)
	return nil
}

func (ms *MemoryStore) SetHidden(id int64, hidden bool) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	issue, ok := ms.issues[id]
	if !ok {
		return ErrNotFound
	}
	issue.IsHidden = hidden
	issue.UpdatedAt = utils.GetSQLTime()
	return nil
}

func (ms *MemoryStore) FlagIssue(issueID, userID int64) (int, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	issue, ok := ms.issues[issueID]
	if !ok {
		return 0, false, ErrNotFound
	}

	byUser := ms.flags[issueID]
	if byUser == nil {
		byUser = make(map[int64]time.Time)
		ms.flags[issueID] = byUser
	}
	byUser[userID] = utils.GetSQLTime()

	count := len(byUser)
	if count >= config.FlagAutoHideThreshold && !issue.IsHidden {
		issue.IsHidden = true
		issue.UpdatedAt = utils.GetSQLTime()
	}
	return count, issue.IsHidden, nil
}

// --- Audit log ---

func (ms *MemoryStore) StatusHistory(issueID int64) ([]models.StatusLogEntry, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := []models.StatusLogEntry{}
	for _, e := range ms.statusLogs {
		if e.IssueID != issueID {
			continue
		}
		entry := e
		if entry.ChangedBy != nil {
			if u, ok := ms.users[*entry.ChangedBy]; ok {
				entry.ChangedByName = u.DisplayName()
			}
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ChangedAt.Equal(out[j].ChangedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].ChangedAt.After(out[j].ChangedAt)
	})
	return out, nil
}

// --- Users ---

func (ms *MemoryStore) CreateUser(in *models.NewUser) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user := &models.User{
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Password:  in.Password,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Phone:     strings.TrimSpace(in.Phone),
		Role:      models.RoleUser,
	}
	if err := user.HashPassword(); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, existing := range ms.users {
		if existing.Email == user.Email {
			return nil, ErrEmailTaken
		}
	}

	now := utils.GetSQLTime()
	ms.nextUserID++
	user.ID = ms.nextUserID
	user.CreatedAt = now
	user.UpdatedAt = now
	ms.users[user.ID] = user

	out := *user
	return &out, nil
}

func (ms *MemoryStore) UserByEmail(email string) (*models.User, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range ms.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (ms *MemoryStore) UserByID(id int64) (*models.User, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	u, ok := ms.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (ms *MemoryStore) UpdateUser(id int64, firstName, lastName, phone string) error {
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "" {
		return fmt.Errorf("%w: first and last name are required", ErrValidation)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	u, ok := ms.users[id]
	if !ok {
		return ErrNotFound
	}
	u.FirstName = strings.TrimSpace(firstName)
	u.LastName = strings.TrimSpace(lastName)
	u.Phone = strings.TrimSpace(phone)
	u.UpdatedAt = utils.GetSQLTime()
	return nil
}

func (ms *MemoryStore) BanUser(id int64, banned bool) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	u, ok := ms.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsBanned = banned
	u.UpdatedAt = utils.GetSQLTime()
	return nil
}

func (ms *MemoryStore) ListUsers() ([]models.User, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := []models.User{}
	for _, u := range ms.users {
		out = append(out, *u)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// --- Analytics ---

func (ms *MemoryStore) Analytics() (*models.Analytics, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	a := &models.Analytics{
		CategoryStats: []models.CategoryCount{},
		StatusStats:   []models.StatusCount{},
	}
	cutoff := utils.GetSQLTime().Add(-7 * 24 * time.Hour)
	byCategory := map[models.Category]int{}
	byStatus := map[models.Status]int{}
	for _, issue := range ms.issues {
		a.TotalIssues++
		if !issue.CreatedAt.Before(cutoff) {
			a.RecentIssues++
		}
		if issue.IsHidden {
			a.HiddenIssues++
		}
		byCategory[issue.Category]++
		byStatus[issue.Status]++
	}
	for _, c := range models.Categories {
		a.CategoryStats = append(a.CategoryStats, models.CategoryCount{Category: c, Count: byCategory[c]})
	}
	for _, s := range models.Statuses {
		a.StatusStats = append(a.StatusStats, models.StatusCount{Status: s, Count: byStatus[s]})
	}
	return a, nil
}
