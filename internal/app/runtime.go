package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// TestModeEnv names the variable that makes binaries return before touching
// databases, queues or sockets.
const TestModeEnv = "SERVICEDESK_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	enabled, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	testModeFlag.Store(err == nil && enabled)
}

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the flag after environment changes.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	detectTestMode()
}
