package integration

import (
	"fmt"
	"sync/atomic"
	"time"
)

var userSeq atomic.Int64

// TestAccount generates a unique user id and username per call so tests
// never share counters or history rows
func TestAccount(suffix string) (userID int64, username string) {
	userID = time.Now().Unix()*1000 + userSeq.Add(1)
	username = fmt.Sprintf("test-%d-%s", userID, suffix)
	return
}
