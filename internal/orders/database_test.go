package orders

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	// A pooled in-memory DSN hands every new connection its own empty
	// database; pin the pool so concurrent tests share one.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&OrderIntent{}, &OrderEvent{}))
	return NewDatabase(db)
}

func TestClaimIntent_New(t *testing.T) {
	db := setupTestDB(t)

	claim, err := db.ClaimIntent("intent-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, ClaimNew, claim.Outcome)
	assert.Equal(t, IntentInFlight, claim.Intent.Status)
}

func TestClaimIntent_InFlight(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.ClaimIntent("intent-1", "user-1")
	require.NoError(t, err)

	claim, err := db.ClaimIntent("intent-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, ClaimInFlight, claim.Outcome)
}

func TestClaimIntent_DuplicateAfterResolve(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.ClaimIntent("intent-1", "user-1")
	require.NoError(t, err)
	require.NoError(t, db.ResolveIntent("intent-1", IntentSucceeded, `{"ok":true}`))

	claim, err := db.ClaimIntent("intent-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, ClaimDuplicate, claim.Outcome)
	assert.Equal(t, `{"ok":true}`, claim.Intent.Result)
}

func TestClaimIntent_LosesInsertRace(t *testing.T) {
	db := setupTestDB(t)

	// Simulate another process winning between our read and our insert by
	// planting the row just before the insert executes. The unique index
	// rejects our insert and the claim must classify against the winner.
	planted := false
	err := db.db.Callback().Create().Before("gorm:create").Register("plant_competing_intent", func(tx *gorm.DB) {
		if planted {
			return
		}
		planted = true
		tx.Session(&gorm.Session{NewDB: true}).Create(&OrderIntent{
			IntentID: "intent-1",
			UserID:   "user-1",
			Status:   IntentInFlight,
		})
	})
	require.NoError(t, err)

	claim, err := db.ClaimIntent("intent-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, ClaimInFlight, claim.Outcome)
	assert.True(t, planted)
}

func TestClaimIntent_ConcurrentClaimants(t *testing.T) {
	db := setupTestDB(t)

	const claimants = 8
	outcomes := make([]ClaimOutcome, claimants)
	errs := make([]error, claimants)

	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claim, err := db.ClaimIntent("intent-1", "user-1")
			errs[i] = err
			if claim != nil {
				outcomes[i] = claim.Outcome
			}
		}(i)
	}
	wg.Wait()

	wins := 0
	for i := 0; i < claimants; i++ {
		require.NoError(t, errs[i])
		switch outcomes[i] {
		case ClaimNew:
			wins++
		case ClaimInFlight:
		default:
			t.Fatalf("unexpected outcome %q", outcomes[i])
		}
	}
	assert.Equal(t, 1, wins, "exactly one claimant may win the intent")
}

func TestClaimIntent_ConflictAcrossUsers(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.ClaimIntent("intent-1", "user-1")
	require.NoError(t, err)

	claim, err := db.ClaimIntent("intent-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, ClaimConflict, claim.Outcome)
}

func TestResolveIntent_Monotonic(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.ClaimIntent("intent-1", "user-1")
	require.NoError(t, err)
	require.NoError(t, db.ResolveIntent("intent-1", IntentSucceeded, `{"ok":true}`))

	// A second resolve must not overwrite the terminal state.
	require.NoError(t, db.ResolveIntent("intent-1", IntentFailed, `{"ok":false}`))

	intent, err := db.GetIntentForUser("intent-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, IntentSucceeded, intent.Status)
	assert.Equal(t, `{"ok":true}`, intent.Result)
}

func TestGetIntentForUser_ScopedToOwner(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.ClaimIntent("intent-1", "user-1")
	require.NoError(t, err)

	intent, err := db.GetIntentForUser("intent-1", "user-2")
	require.NoError(t, err)
	assert.Nil(t, intent)
}

func TestFinalizeEvent_OnlyFromAttempted(t *testing.T) {
	db := setupTestDB(t)

	event := &OrderEvent{
		EventID:  "event-1",
		UserID:   "user-1",
		IntentID: "intent-1",
		TokenID:  "123",
		Side:     "BUY",
		Status:   EventAttempted,
	}
	require.NoError(t, db.CreateEvent(event))

	wallet := "0x05fc40e3a4cdd9b0b3fbc1ab2f0e8a07a0a16dcf"
	require.NoError(t, db.FinalizeEvent("event-1", EventSubmitted, 200, "", "", wallet))
	require.NoError(t, db.FinalizeEvent("event-1", EventRejected, 400, "late", "late", "0xother"))

	stored, err := db.GetEventByIntent("intent-1")
	require.NoError(t, err)
	assert.Equal(t, EventSubmitted, stored.Status)
	assert.Equal(t, 200, stored.UpstreamStatus)
	assert.Equal(t, wallet, stored.WalletAddress)
	assert.Empty(t, stored.ErrorCode)
}
