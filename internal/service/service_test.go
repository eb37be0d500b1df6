package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familytasks/internal/config"
	"familytasks/internal/credentials"
	"familytasks/internal/database"
	apperrors "familytasks/internal/errors"
	"familytasks/internal/logging"
	"familytasks/internal/models"
	"familytasks/internal/repository"
)

var testStart = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// testClock advances one second on every reading so join order is deterministic
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// codeSequence hands out the given codes in order, then random ones
type codeSequence struct {
	mu    sync.Mutex
	codes []string
}

func (s *codeSequence) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		return credentials.GenerateInviteCode()
	}
	code := s.codes[0]
	s.codes = s.codes[1:]
	return code, nil
}

func (s *codeSequence) Push(codes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, codes...)
}

type testEnv struct {
	store        *repository.Store
	codes        *codeSequence
	families     *FamilyService
	membership   *MembershipService
	reassignment *ReassignmentService
	tasks        *TaskService
	export       *ExportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"), database.WithRetry(5, time.Millisecond))
	require.NoError(t, err)
	return newTestEnvWithDB(t, db)
}

// newMySQLTestEnv runs against the server named by FAMILYTASKS_TEST_MYSQL_URL
// and skips the test when it is unset
func newMySQLTestEnv(t *testing.T) *testEnv {
	t.Helper()

	url := os.Getenv("FAMILYTASKS_TEST_MYSQL_URL")
	if url == "" {
		t.Skip("FAMILYTASKS_TEST_MYSQL_URL not set")
	}
	db, err := database.InitializeWithConfig(&config.Config{
		DatabaseType:     "mysql",
		DatabaseURL:      url,
		TxMaxAttempts:    10,
		TxInitialBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return newTestEnvWithDB(t, db)
}

func newTestEnvWithDB(t *testing.T, db *database.DB) *testEnv {
	t.Helper()

	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background()))

	store := repository.NewStore(db)
	clock := &testClock{now: testStart}
	codes := &codeSequence{}
	opts := []Option{WithClock(clock.Now), WithCodeGenerator(codes.Next)}
	logger := logging.Nop()

	reassigner := NewReassignmentService(store, logger, opts...)
	return &testEnv{
		store:        store,
		codes:        codes,
		families:     NewFamilyService(store, DefaultLimits(), logger, opts...),
		membership:   NewMembershipService(store, reassigner, logger, opts...),
		reassignment: reassigner,
		tasks:        NewTaskService(store, logger, opts...),
		export:       NewExportService(store, logger, opts...),
	}
}

// createFamily creates a family owned by parentID and joins the other users in order
func (e *testEnv) createFamily(t *testing.T, parentID string, joiners ...models.Member) *models.Family {
	t.Helper()
	ctx := context.Background()

	family, err := e.families.CreateFamily(ctx, parentID, "The Smiths", false)
	require.NoError(t, err)
	for _, m := range joiners {
		_, err := e.membership.JoinFamily(ctx, m.UserID, family.InviteCode, m.Role)
		require.NoError(t, err)
	}
	return family
}

func (e *testEnv) mustFamily(t *testing.T, familyID string) *models.Family {
	t.Helper()
	family, err := e.store.Families.GetFamilyByID(context.Background(), familyID)
	require.NoError(t, err)
	require.NotNil(t, family)
	return family
}

func (e *testEnv) mustUser(t *testing.T, userID string) *models.User {
	t.Helper()
	user, err := e.store.Users.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func (e *testEnv) eventTypes(t *testing.T, familyID string) []string {
	t.Helper()
	events, err := e.store.Outbox.ListByFamily(context.Background(), familyID)
	require.NoError(t, err)
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func assertCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.GetCode(err), "error: %v", err)
}

func child(id string) models.Member { return models.Member{UserID: id, Role: models.RoleChild} }
func parent(id string) models.Member { return models.Member{UserID: id, Role: models.RoleParent} }
