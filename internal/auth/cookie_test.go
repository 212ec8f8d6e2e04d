package auth

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "cookie-test-secret-32-chars-long"

func newTestSigner(t *testing.T) *CookieSigner {
	t.Helper()
	signer, err := NewCookieSigner(testSecret)
	require.NoError(t, err)
	return signer
}

func TestNewCookieSigner_EmptySecret(t *testing.T) {
	_, err := NewCookieSigner("")
	assert.Error(t, err)
}

func TestGenerateRecord_RoundTrip(t *testing.T) {
	signer := newTestSigner(t)
	now := time.Now()

	record := signer.GenerateRecord("alice", now)
	assert.True(t, signer.VerifyRecord("alice", record, now))
}

func TestGenerateRecord_Format(t *testing.T) {
	signer := newTestSigner(t)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	record := signer.GenerateRecord("alice", now)
	parts := strings.SplitN(record, "-", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, "2026", parts[0])
	assert.NotEmpty(t, parts[1])
	assert.NotEmpty(t, parts[2])
}

func TestGenerateRecord_StableWithinProcess(t *testing.T) {
	signer := newTestSigner(t)
	now := time.Now()

	// Salt is fixed per signer, so reissues are byte-identical.
	assert.Equal(t, signer.GenerateRecord("alice", now), signer.GenerateRecord("alice", now))
}

func TestVerifyRecord_CrossUserRejected(t *testing.T) {
	signer := newTestSigner(t)
	now := time.Now()

	record := signer.GenerateRecord("alice", now)
	assert.False(t, signer.VerifyRecord("bob", record, now))
}

func TestVerifyRecord_WrongSecretRejected(t *testing.T) {
	now := time.Now()
	signer := newTestSigner(t)
	other, err := NewCookieSigner("another-secret-32-characters-ok!")
	require.NoError(t, err)

	record := signer.GenerateRecord("alice", now)
	assert.False(t, other.VerifyRecord("alice", record, now))
}

func TestValidRecord_Expiry(t *testing.T) {
	signer := newTestSigner(t)
	now := time.Now().UTC()

	fresh := signer.GenerateRecord("alice", now)
	assert.True(t, signer.VerifyRecord("alice", fresh, now))

	twoYearsOld := signer.GenerateRecord("alice", now.AddDate(-2, 0, 0))
	assert.True(t, ValidRecord(twoYearsOld, now))
	assert.True(t, signer.VerifyRecord("alice", twoYearsOld, now))

	fourYearsOld := signer.GenerateRecord("alice", now.AddDate(-4, 0, 0))
	assert.False(t, ValidRecord(fourYearsOld, now))
	assert.False(t, signer.VerifyRecord("alice", fourYearsOld, now))
}

func TestValidRecord_Malformed(t *testing.T) {
	now := time.Now()
	for _, record := range []string{
		"",
		"2026",
		"2026-abc",
		"26-abc-def",
		"yyyy-abc-def",
		"20261-abc-def",
	} {
		assert.False(t, ValidRecord(record, now), record)
	}
}

func TestMergeCookie_EmptyCookie(t *testing.T) {
	signer := newTestSigner(t)
	now := time.Now()

	matched, cookie := signer.MergeCookie("", "alice", 6, now)
	assert.False(t, matched)
	assert.True(t, signer.VerifyRecord("alice", cookie, now))
	assert.NotContains(t, cookie, ".")
}

func TestMergeCookie_MatchDetectedAndSuperseded(t *testing.T) {
	signer := newTestSigner(t)
	now := time.Now()

	_, first := signer.MergeCookie("", "alice", 6, now)
	matched, second := signer.MergeCookie(first, "alice", 6, now)

	assert.True(t, matched)
	// The matching record is replaced by the fresh one, never duplicated.
	assert.Len(t, strings.Split(second, "."), 1)
}

func TestMergeCookie_PreservesForeignRecords(t *testing.T) {
	signer := newTestSigner(t)
	now := time.Now()

	_, bobCookie := signer.MergeCookie("", "bob", 6, now)
	matched, cookie := signer.MergeCookie(bobCookie, "alice", 6, now)

	assert.False(t, matched)
	records := strings.Split(cookie, ".")
	require.Len(t, records, 2)
	assert.True(t, signer.VerifyRecord("alice", records[0], now))
	assert.True(t, signer.VerifyRecord("bob", records[1], now))
}

func TestMergeCookie_CapsForeignRecords(t *testing.T) {
	signer := newTestSigner(t)
	now := time.Now()
	maxRecords := 3

	var foreign []string
	for i := 0; i < 8; i++ {
		other, err := NewCookieSigner(testSecret)
		require.NoError(t, err)
		foreign = append(foreign, other.GenerateRecord(fmt.Sprintf("user%d", i), now))
	}

	_, cookie := signer.MergeCookie(strings.Join(foreign, "."), "alice", maxRecords, now)
	assert.Len(t, strings.Split(cookie, "."), maxRecords+1)
}

func TestMergeCookie_DropsMalformedAndExpired(t *testing.T) {
	signer := newTestSigner(t)
	now := time.Now().UTC()

	expired := signer.GenerateRecord("bob", now.AddDate(-4, 0, 0))
	existing := strings.Join([]string{"garbage", expired, "a-b"}, ".")

	matched, cookie := signer.MergeCookie(existing, "alice", 6, now)
	assert.False(t, matched)
	assert.Len(t, strings.Split(cookie, "."), 1)
}

func TestHashUserKey(t *testing.T) {
	assert.Equal(t, HashUserKey("alice"), HashUserKey("alice"))
	assert.NotEqual(t, HashUserKey("alice"), HashUserKey("bob"))
	assert.NotContains(t, HashUserKey("alice"), "alice")
	assert.LessOrEqual(t, len(HashUserKey("alice")), 31)
}
