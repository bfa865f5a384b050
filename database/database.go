// civictrack/database/database.go
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"civictrack/config"
	"civictrack/models"
	"civictrack/utils"

	_ "github.com/mattn/go-sqlite3"
)

// DatabaseService is the SQLite-backed Store implementation.
type DatabaseService struct {
	DB     *sql.DB
	logger *slog.Logger
	dsn    string
}

// InitDB connects to the database, runs migrations, and seeds the
// default admin account.
func InitDB(dataSourceName string, adminPassword string, logger *slog.Logger) (*DatabaseService, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}

	// Run the base schema to ensure all tables exist.
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to execute base schema: %w", err)
	}

	// Run versioned migrations
	if err := runMigrations(db, logger); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	ds := &DatabaseService{DB: db, logger: logger, dsn: dataSourceName}

	if err := ds.seedAdmin(adminPassword); err != nil {
		return nil, fmt.Errorf("failed to seed admin account: %w", err)
	}

	logger.Info("Database initialized", "dsn", dataSourceName)
	return ds, nil
}

// runMigrations applies all un-applied migrations.
func runMigrations(db *sql.DB, logger *slog.Logger) error {
	var latestVersion uint
	err := db.QueryRow("SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1").Scan(&latestVersion)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("could not get db version: %w", err)
	}

	for _, m := range allMigrations {
		if m.Version <= latestVersion {
			continue
		}
		logger.Info("Applying migration", "version", m.Version)
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.Query); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				logger.Error("Failed to rollback migration", "version", m.Version, "error", rerr)
			}
			return fmt.Errorf("failed to apply migration v%d: %w", m.Version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.Version, utils.GetSQLTime()); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				logger.Error("Failed to rollback migration record", "version", m.Version, "error", rerr)
			}
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration v%d: %w", m.Version, err)
		}
	}
	return nil
}

// seedAdmin creates the default admin account when no admin exists yet.
func (ds *DatabaseService) seedAdmin(password string) error {
	var count int
	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM users WHERE role = ?", models.RoleAdmin).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	admin := &models.User{
		Email:     utils.GetEnv("CIVICTRACK_ADMIN_EMAIL", config.DefaultAdminEmail),
		Password:  password,
		FirstName: "System",
		LastName:  "Administrator",
		Role:      models.RoleAdmin,
	}
	if err := admin.HashPassword(); err != nil {
		return err
	}
	now := utils.GetSQLTime()
	_, err := ds.DB.Exec(
		`INSERT INTO users (email, password, first_name, last_name, phone, role, is_banned, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '', ?, 0, ?, ?)`,
		admin.Email, admin.Password, admin.FirstName, admin.LastName, admin.Role, now, now)
	if err != nil {
		return err
	}
	ds.logger.Info("Seeded default admin account", "email", admin.Email)
	return nil
}

func (ds *DatabaseService) Close() error {
	return ds.DB.Close()
}

// --- Issues ---

func (ds *DatabaseService) CreateIssue(in *models.NewIssue) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	photos, err := json.Marshal(in.Photos)
	if err != nil {
		return 0, fmt.Errorf("failed to encode photos: %w", err)
	}

	tx, err := ds.DB.Begin()
	if err != nil {
		return 0, err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback transaction in CreateIssue", "error", rerr)
		}
	}()

	now := utils.GetSQLTime()
	res, err := tx.Exec(
		`INSERT INTO issues (title, description, category, latitude, longitude, address, user_id, photos, is_anonymous, status, is_hidden, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		strings.TrimSpace(in.Title), strings.TrimSpace(in.Description), in.Category,
		in.Latitude, in.Longitude, in.Address, in.UserID, string(photos),
		in.IsAnonymous, models.StatusReported, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert issue: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	// The initial audit entry is part of the same transaction: an issue
	// without a "reported" log entry must never be observable.
	_, err = tx.Exec(
		"INSERT INTO status_logs (issue_id, status, changed_by, changed_at) VALUES (?, ?, NULL, ?)",
		id, models.StatusReported, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert initial status log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

const issueColumns = `
	i.id, i.title, i.description, i.category, i.latitude, i.longitude,
	i.address, i.user_id, i.photos, i.is_anonymous, i.status, i.is_hidden,
	i.created_at, i.updated_at,
	CASE WHEN i.is_anonymous THEN '' ELSE COALESCE(TRIM(u.first_name || ' ' || u.last_name), '') END,
	(SELECT COUNT(*) FROM issue_flags f WHERE f.issue_id = i.id)`

func scanIssue(row interface{ Scan(...interface{}) error }) (*models.Issue, error) {
	var issue models.Issue
	var photosJSON string
	var reporter string
	err := row.Scan(
		&issue.ID, &issue.Title, &issue.Description, &issue.Category,
		&issue.Latitude, &issue.Longitude, &issue.Address, &issue.UserID,
		&photosJSON, &issue.IsAnonymous, &issue.Status, &issue.IsHidden,
		&issue.CreatedAt, &issue.UpdatedAt, &reporter, &issue.FlagCount)
	if err != nil {
		return nil, err
	}
	if issue.IsAnonymous || reporter == "" {
		issue.ReporterName = "Anonymous"
	} else {
		issue.ReporterName = reporter
	}
	if err := json.Unmarshal([]byte(photosJSON), &issue.Photos); err != nil {
		issue.Photos = nil
	}
	if issue.Photos == nil {
		issue.Photos = []string{}
	}
	return &issue, nil
}

func (ds *DatabaseService) IssueByID(id int64) (*models.Issue, error) {
	row := ds.DB.QueryRow(
		"SELECT "+issueColumns+" FROM issues i LEFT JOIN users u ON u.id = i.user_id WHERE i.id = ?", id)
	issue, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load issue %d: %w", id, err)
	}
	return issue, nil
}

func (ds *DatabaseService) ListIssues(filter models.IssueFilter) ([]models.Issue, error) {
	query := "SELECT " + issueColumns + " FROM issues i LEFT JOIN users u ON u.id = i.user_id"
	var conds []string
	var args []interface{}
	if filter.Status != "" && string(filter.Status) != models.FilterAll {
		conds = append(conds, "i.status = ?")
		args = append(args, filter.Status)
	}
	if filter.Category != "" && string(filter.Category) != models.FilterAll {
		conds = append(conds, "i.category = ?")
		args = append(args, filter.Category)
	}
	if filter.OnlyHidden {
		conds = append(conds, "i.is_hidden = 1")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY i.created_at DESC, i.id ASC"

	rows, err := ds.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	issues := []models.Issue{}
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, *issue)
	}
	return issues, rows.Err()
}

// NearbyIssues loads non-hidden candidates and applies the great-circle
// filter in Go so that both store implementations compute identical
// distances. See nearby.go.
func (ds *DatabaseService) NearbyIssues(lat, lng, radiusKm float64, status models.Status, category models.Category) ([]models.NearbyIssue, error) {
	rows, err := ds.DB.Query(
		"SELECT "+issueColumns+" FROM issues i LEFT JOIN users u ON u.id = i.user_id WHERE i.is_hidden = 0 ORDER BY i.created_at DESC, i.id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby candidates: %w", err)
	}
	defer rows.Close()

	var candidates []models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, *issue)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nearbyFilter(candidates, lat, lng, radiusKm, status, category), nil
}

// --- Moderation ---

func (ds *DatabaseService) UpdateStatus(id int64, status models.Status, actorID *int64) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	tx, err := ds.DB.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback transaction in UpdateStatus", "error", rerr)
		}
	}()

	now := utils.GetSQLTime()
	res, err := tx.Exec("UPDATE issues SET status = ?, updated_at = ? WHERE id = ?", status, now, id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	var actor interface{}
	if actorID != nil {
		actor = *actorID
	}
	_, err = tx.Exec(
		"INSERT INTO status_logs (issue_id, status, changed_by, changed_at) VALUES (?, ?, ?, ?)",
		id, status, actor, now)
	if err != nil {
		return fmt.Errorf("failed to append status log: %w", err)
	}

	return tx.Commit()
}

func (ds *DatabaseService) SetHidden(id int64, hidden bool) error {
	res, err := ds.DB.Exec(
		"UPDATE issues SET is_hidden = ?, updated_at = ? WHERE id = ?",
		hidden, utils.GetSQLTime(), id)
	if err != nil {
		return fmt.Errorf("failed to set hidden: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// FlagIssue records userID's flag on issueID. The upsert, the count
// re-read, and the conditional hide all run in one transaction so two
// concurrent third flags cannot both observe a count of two.
func (ds *DatabaseService) FlagIssue(issueID, userID int64) (int, bool, error) {
	tx, err := ds.DB.Begin()
	if err != nil {
		return 0, false, err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback transaction in FlagIssue", "error", rerr)
		}
	}()

	var hidden bool
	err = tx.QueryRow("SELECT is_hidden FROM issues WHERE id = ?", issueID).Scan(&hidden)
	if err == sql.ErrNoRows {
		return 0, false, ErrNotFound
	}
	if err != nil {
		return 0, false, err
	}

	_, err = tx.Exec(
		`INSERT INTO issue_flags (issue_id, user_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(issue_id, user_id) DO UPDATE SET created_at = excluded.created_at`,
		issueID, userID, utils.GetSQLTime())
	if err != nil {
		return 0, false, fmt.Errorf("failed to record flag: %w", err)
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM issue_flags WHERE issue_id = ?", issueID).Scan(&count); err != nil {
		return 0, false, err
	}

	if count >= config.FlagAutoHideThreshold && !hidden {
		if _, err := tx.Exec("UPDATE issues SET is_hidden = 1, updated_at = ? WHERE id = ?", utils.GetSQLTime(), issueID); err != nil {
			return 0, false, fmt.Errorf("failed to auto-hide issue: %w", err)
		}
		hidden = true
	}

	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return count, hidden, nil
}

// --- Audit log ---

func (ds *DatabaseService) StatusHistory(issueID int64) ([]models.StatusLogEntry, error) {
	rows, err := ds.DB.Query(
		`SELECT l.id, l.issue_id, l.status, l.changed_by, l.changed_at,
		        COALESCE(TRIM(u.first_name || ' ' || u.last_name), '')
		 FROM status_logs l LEFT JOIN users u ON u.id = l.changed_by
		 WHERE l.issue_id = ?
		 ORDER BY l.changed_at DESC, l.id DESC`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	defer rows.Close()

	entries := []models.StatusLogEntry{}
	for rows.Next() {
		var e models.StatusLogEntry
		var changedBy sql.NullInt64
		var name string
		if err := rows.Scan(&e.ID, &e.IssueID, &e.Status, &changedBy, &e.ChangedAt, &name); err != nil {
			return nil, err
		}
		if changedBy.Valid {
			v := changedBy.Int64
			e.ChangedBy = &v
			e.ChangedByName = name
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Users ---

func (ds *DatabaseService) CreateUser(in *models.NewUser) (*models.User, error) {
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

	now := utils.GetSQLTime()
	res, err := ds.DB.Exec(
		`INSERT INTO users (email, password, first_name, last_name, phone, role, is_banned, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		user.Email, user.Password, user.FirstName, user.LastName, user.Phone, user.Role, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	user.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	return user, nil
}

const userColumns = "id, email, password, first_name, last_name, phone, role, is_banned, created_at, updated_at"

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName,
		&u.Phone, &u.Role, &u.IsBanned, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (ds *DatabaseService) UserByEmail(email string) (*models.User, error) {
	row := ds.DB.QueryRow("SELECT "+userColumns+" FROM users WHERE email = ?", strings.ToLower(strings.TrimSpace(email)))
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (ds *DatabaseService) UserByID(id int64) (*models.User, error) {
	row := ds.DB.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (ds *DatabaseService) UpdateUser(id int64, firstName, lastName, phone string) error {
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "" {
		return fmt.Errorf("%w: first and last name are required", ErrValidation)
	}
	res, err := ds.DB.Exec(
		"UPDATE users SET first_name = ?, last_name = ?, phone = ?, updated_at = ? WHERE id = ?",
		strings.TrimSpace(firstName), strings.TrimSpace(lastName), strings.TrimSpace(phone), utils.GetSQLTime(), id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (ds *DatabaseService) BanUser(id int64, banned bool) error {
	res, err := ds.DB.Exec(
		"UPDATE users SET is_banned = ?, updated_at = ? WHERE id = ?",
		banned, utils.GetSQLTime(), id)
	if err != nil {
		return fmt.Errorf("failed to set ban: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (ds *DatabaseService) ListUsers() ([]models.User, error) {
	rows, err := ds.DB.Query("SELECT " + userColumns + " FROM users ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// --- Analytics ---

func (ds *DatabaseService) Analytics() (*models.Analytics, error) {
	a := &models.Analytics{
		CategoryStats: []models.CategoryCount{},
		StatusStats:   []models.StatusCount{},
	}

	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM issues").Scan(&a.TotalIssues); err != nil {
		return nil, err
	}
	cutoff := utils.GetSQLTime().Add(-7 * 24 * time.Hour)
	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM issues WHERE created_at >= ?", cutoff).Scan(&a.RecentIssues); err != nil {
		return nil, err
	}
	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM issues WHERE is_hidden = 1").Scan(&a.HiddenIssues); err != nil {
		return nil, err
	}

	// Stable enum order so the dashboard rows never jump around.
	for _, c := range models.Categories {
		var n int
		if err := ds.DB.QueryRow("SELECT COUNT(*) FROM issues WHERE category = ?", c).Scan(&n); err != nil {
			return nil, err
		}
		a.CategoryStats = append(a.CategoryStats, models.CategoryCount{Category: c, Count: n})
	}
	for _, s := range models.Statuses {
		var n int
		if err := ds.DB.QueryRow("SELECT COUNT(*) FROM issues WHERE status = ?", s).Scan(&n); err != nil {
			return nil, err
		}
		a.StatusStats = append(a.StatusStats, models.StatusCount{Status: s, Count: n})
	}
	return a, nil
}
