// civictrack/handlers/main_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"civictrack/database"
	"civictrack/models"
	"civictrack/utils"
)

const (
	testJWTSecret     = "test-secret"
	testAdminPassword = "admin123"
)

// MockApplication holds dependencies for handler tests.
type MockApplication struct {
	db            database.Store
	storage       models.StorageService
	notifier      *recordingNotifier
	geocoder      *utils.Geocoder
	rateLimiter   *models.RateLimiter
	submitLimiter models.SubmitLimiter
	uploadDir     string
	logger        *slog.Logger
}

func (a *MockApplication) DB() database.Store                  { return a.db }
func (a *MockApplication) Logger() *slog.Logger                { return a.logger }
func (a *MockApplication) Storage() models.StorageService      { return a.storage }
func (a *MockApplication) Notifier() models.Notifier           { return a.notifier }
func (a *MockApplication) Geocoder() *utils.Geocoder           { return a.geocoder }
func (a *MockApplication) RateLimiter() *models.RateLimiter    { return a.rateLimiter }
func (a *MockApplication) SubmitLimiter() models.SubmitLimiter { return a.submitLimiter }
func (a *MockApplication) JWTSecret() string                   { return testJWTSecret }
func (a *MockApplication) UploadDir() string                   { return a.uploadDir }

// recordingNotifier captures sends instead of talking to SMTP. Sends
// happen on background goroutines, hence the lock.
type recordingNotifier struct {
	mu            sync.Mutex
	statusUpdates []string
	welcomes      []string
}

func (n *recordingNotifier) SendStatusUpdate(email, issueTitle string, status models.Status) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statusUpdates = append(n.statusUpdates, email)
	return nil
}

func (n *recordingNotifier) SendWelcome(email, firstName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomes = append(n.welcomes, email)
	return nil
}

// failTransport forces the geocoder onto its coordinate fallback so
// tests never reach the network.
type failTransport struct{}

func (failTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, fmt.Errorf("no network in tests")
}

// setupTestApp creates a full application stack on the in-memory store.
func setupTestApp(t *testing.T) *MockApplication {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	store, err := database.NewMemoryStore(testAdminPassword, logger)
	if err != nil {
		t.Fatalf("Failed to initialize memory store: %v", err)
	}

	uploadDir, err := os.MkdirTemp("", "civictrack_test_uploads_*")
	if err != nil {
		t.Fatalf("Failed to create temp upload dir: %v", err)
	}
	storage, err := utils.NewLocalStorage(uploadDir)
	if err != nil {
		t.Fatalf("Failed to create local storage: %v", err)
	}

	geocoder := utils.NewGeocoder()
	geocoder.Client = &http.Client{Transport: failTransport{}}

	app := &MockApplication{
		db:            store,
		storage:       storage,
		notifier:      &recordingNotifier{},
		geocoder:      geocoder,
		rateLimiter:   models.NewRateLimiter(time.Millisecond, 1000, time.Hour, 24*time.Hour),
		submitLimiter: &models.MemorySubmitLimiter{Limit: 1000},
		uploadDir:     uploadDir,
		logger:        logger,
	}

	t.Cleanup(func() {
		os.RemoveAll(uploadDir)
	})

	return app
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// doJSON performs a request with an optional JSON body and bearer token.
func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
}

// registerUser registers an account via the API and returns its token.
func registerUser(t *testing.T, router http.Handler, email string) string {
	t.Helper()
	rr := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":     email,
		"password":  "secret123",
		"firstName": "Test",
		"lastName":  "User",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Register %s: status = %d, body = %s", email, rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rr, &resp)
	return resp.Token
}

// loginAdmin signs in as the seeded admin account.
func loginAdmin(t *testing.T, router http.Handler) string {
	t.Helper()
	rr := doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "admin@civictrack.local",
		"password": testAdminPassword,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Admin login: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rr, &resp)
	return resp.Token
}

// createIssueViaAPI submits a minimal multipart issue form.
func createIssueViaAPI(t *testing.T, router http.Handler, token string, lat, lng float64) int64 {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := map[string]string{
		"title":       "Pothole on Elm Street",
		"description": "A deep pothole near the bus stop.",
		"category":    string(models.CategoryRoads),
		"latitude":    fmt.Sprintf("%v", lat),
		"longitude":   fmt.Sprintf("%v", lng),
		"address":     "Elm Street",
	}
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			t.Fatalf("Failed to write form field %s: %v", k, err)
		}
	}
	if err := form.Close(); err != nil {
		t.Fatalf("Failed to close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/issues/", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Create issue: status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var issue models.Issue
	decodeBody(t, rr, &issue)
	return issue.ID
}
