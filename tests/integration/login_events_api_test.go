package integration

import (
	"net/http"
	"testing"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginEventsAPI_RequiresServiceToken(t *testing.T) {
	db := requireDB(t)
	ts, err := NewTestServer(db)
	require.NoError(t, err)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/v1/login-events", nil)
	require.NoError(t, err)

	resp, err := ts.Server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginEventsAPI_FailureThresholdFlow(t *testing.T) {
	db := requireDB(t)
	ts, err := NewTestServer(db)
	require.NoError(t, err)
	defer ts.Close()

	userID, username := TestAccount("threshold")
	event := map[string]any{
		"user_id":     userID,
		"username":    username,
		"remote_addr": "203.0.113.5",
		"outcome":     "failure",
		"reason":      "rejected",
	}

	// User has history elsewhere, so these failures land on the
	// unknown-location counter with threshold 3.
	require.NoError(t, db.SeedLoginNow(userID, "local", "198.51.100."))

	for i := 0; i < 2; i++ {
		resp, decoded := ts.PostLoginEvent(t, event)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, decoded.Processed)
		assert.Nil(t, decoded.Notification)
	}

	resp, decoded := ts.PostLoginEvent(t, event)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, decoded.Notification)
	assert.Equal(t, models.NotifyFailNew, decoded.Notification.Type)
	assert.Equal(t, int64(3), decoded.Notification.Count)
	assert.Equal(t, 1, ts.Sink.Count())
}

func TestLoginEventsAPI_SuccessIssuesTokenAndClearsCounters(t *testing.T) {
	db := requireDB(t)
	ts, err := NewTestServer(db)
	require.NoError(t, err)
	defer ts.Close()

	userID, username := TestAccount("success")
	failure := map[string]any{
		"user_id":     userID,
		"username":    username,
		"remote_addr": "203.0.113.5",
		"outcome":     "failure",
	}
	require.NoError(t, db.SeedLoginNow(userID, "local", "198.51.100."))

	ts.PostLoginEvent(t, failure)
	ts.PostLoginEvent(t, failure)

	resp, decoded := ts.PostLoginEvent(t, map[string]any{
		"user_id":     userID,
		"username":    username,
		"remote_addr": "203.0.113.5",
		"outcome":     "success",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decoded.HistoryToken)
	assert.Greater(t, decoded.TokenMaxAge, int64(0))

	// Counters restarted: two more failures stay below the threshold.
	ts.PostLoginEvent(t, failure)
	_, decoded = ts.PostLoginEvent(t, failure)
	assert.Nil(t, decoded.Notification)
}

func TestLoginEventsAPI_TokenMakesNextFailureKnown(t *testing.T) {
	db := requireDB(t)
	ts, err := NewTestServer(db)
	require.NoError(t, err)
	defer ts.Close()

	userID, username := TestAccount("token")

	_, success := ts.PostLoginEvent(t, map[string]any{
		"user_id":     userID,
		"username":    username,
		"remote_addr": "203.0.113.5",
		"outcome":     "success",
	})
	require.NotEmpty(t, success.HistoryToken)

	// Failure from a different network but presenting the token.
	_, decoded := ts.PostLoginEvent(t, map[string]any{
		"user_id":       userID,
		"username":      username,
		"remote_addr":   "198.51.100.7",
		"outcome":       "failure",
		"history_token": success.HistoryToken,
	})
	require.NotNil(t, decoded.KnownLocation)
	assert.True(t, *decoded.KnownLocation)
}

func TestLoginEventsAPI_ThrottledNotProcessed(t *testing.T) {
	db := requireDB(t)
	ts, err := NewTestServer(db)
	require.NoError(t, err)
	defer ts.Close()

	userID, username := TestAccount("throttled")

	for i := 0; i < 5; i++ {
		resp, decoded := ts.PostLoginEvent(t, map[string]any{
			"user_id":     userID,
			"username":    username,
			"remote_addr": "203.0.113.5",
			"outcome":     "failure",
			"reason":      "throttled",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, decoded.Processed)
	}
	assert.Equal(t, 0, ts.Sink.Count())
}
