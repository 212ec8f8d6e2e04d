package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/loginsentry/internal/models"
)

// CookieName is the suggested cookie under which callers persist the token.
const CookieName = "loginsentry_prevlogins"

// recordMaxAgeYears bounds how old a record may be before it stops counting
// as evidence. A device unused for that long should not stay trusted.
const recordMaxAgeYears = 3

// CookieSigner creates and checks history-token records.
//
// A record proves that a device previously completed a login as a given
// user, without any server-side per-device state. Format:
//
//	YYYY-SSSSSS-HHHHHHHHHHHHHHHHHHHHHHHHHHHHHH
//
// where S is a random 32-bit salt and H an HMAC-SHA1 of
// "username|" + year + salt, both base-36 encoded. A full token is several
// records joined by ".". The salt keeps one user's records on different
// devices unlinkable after the fact.
type CookieSigner struct {
	secret []byte
	// salt is fixed per signer so reissues within one process produce
	// identical fresh records instead of churning the cookie.
	salt string
}

// NewCookieSigner builds a signer for the given secret. Fails if the secret
// is empty or the salt cannot be drawn from the system entropy source.
func NewCookieSigner(secret string) (*CookieSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty secret", models.ErrSignatureFailure)
	}

	var raw [4]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSignatureFailure, err)
	}
	salt := strconv.FormatUint(uint64(binary.BigEndian.Uint32(raw[:])), 36)

	return &CookieSigner{secret: []byte(secret), salt: salt}, nil
}

// GenerateRecord creates a fresh record for the user, dated now.
func (s *CookieSigner) GenerateRecord(username string, now time.Time) string {
	return s.buildRecord(username, formatYear(now), s.salt)
}

// buildRecord computes a record from explicit year and salt. Verification
// re-derives a record from an existing one's fields; generation uses the
// signer's own salt.
func (s *CookieSigner) buildRecord(username, year, salt string) string {
	mac := hmac.New(sha1.New, s.secret)
	mac.Write([]byte(username + "|" + year + salt))
	sig := new(big.Int).SetBytes(mac.Sum(nil)).Text(36)
	return year + "-" + salt + "-" + sig
}

// VerifyRecord reports whether record was generated for username with this
// signer's secret and is still within the age limit. Comparison is
// constant time.
func (s *CookieSigner) VerifyRecord(username, record string, now time.Time) bool {
	if !ValidRecord(record, now) {
		return false
	}
	parts := strings.SplitN(record, "-", 3)
	expected := s.buildRecord(username, parts[0], parts[1])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(record)) == 1
}

// ValidRecord checks structure only: three '-'-separated fields, a 4-digit
// year, and not older than the age limit. It says nothing about who the
// record belongs to.
func ValidRecord(record string, now time.Time) bool {
	parts := strings.SplitN(record, "-", 3)
	if len(parts) != 3 || len(parts[0]) != 4 {
		return false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	return year >= now.UTC().Year()-recordMaxAgeYears
}

// MergeCookie parses an existing token, reports whether any record in it
// verifies for username, and builds the replacement token: a fresh record
// for this user first, then up to maxRecords of the prior valid records
// that belong to other users. Records for this same user are dropped (the
// fresh one supersedes them); malformed and expired records are discarded
// silently.
func (s *CookieSigner) MergeCookie(cookie, username string, maxRecords int, now time.Time) (bool, string) {
	matched := false
	newCookie := s.GenerateRecord(username, now)

	if cookie == "" {
		return false, newCookie
	}

	records := strings.Split(cookie, ".")
	for i, record := range records {
		if !ValidRecord(record, now) {
			continue
		}
		current := s.VerifyRecord(username, record, now)
		matched = matched || current
		if i < maxRecords && !current {
			newCookie += "." + record
		}
	}
	return matched, newCookie
}

// CookieContains reports whether any record in the token verifies for
// username, without reissuing anything.
func (s *CookieSigner) CookieContains(username, cookie string, now time.Time) bool {
	if cookie == "" {
		return false
	}
	for _, record := range strings.Split(cookie, ".") {
		if s.VerifyRecord(username, record, now) {
			return true
		}
	}
	return false
}

// HashUserKey derives a fixed-width cache-key segment from a username, so
// store keys never carry the raw name.
func HashUserKey(username string) string {
	sum := sha1.Sum([]byte(username))
	key := new(big.Int).SetBytes(sum[:]).Text(36)
	if len(key) > 31 {
		key = key[:31]
	}
	return key
}

func formatYear(now time.Time) string {
	return fmt.Sprintf("%04d", now.UTC().Year())
}
