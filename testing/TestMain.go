// Package testing switches the process into test mode when imported, so
// binaries under test return before dialing PostgreSQL or Redis.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

var testDefaults = map[string]string{
	"SERVICEDESK_TEST_MODE": "1",
	"JWT_SECRET":            "test-secret",
	"LOG_FORMAT":            "json",
}

func ensureTestMode() {
	once.Do(func() {
		for key, value := range testDefaults {
			if _, ok := os.LookupEnv(key); !ok {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be delegated to from a package's own TestMain.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
