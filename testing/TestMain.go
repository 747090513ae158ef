// Package testing puts binaries into test mode when imported by a test, so
// calling main skips dialing Redis and binding ports.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("BAKER_TEST_MODE", "1")
		if os.Getenv("CSRF_SECRET") == "" {
			_ = os.Setenv("CSRF_SECRET", "test-secret")
		}
		if os.Getenv("BACKEND_URL") == "" {
			_ = os.Setenv("BACKEND_URL", "http://127.0.0.1:0")
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
