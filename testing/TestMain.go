// Package testing flags the process as a test run. Test packages that build
// binaries or routers import it for its side effect.
package testing

import (
	"os"
	stdtesting "testing"
)

const testModeEnv = "GEOAPP_TEST_MODE"

func init() {
	_ = os.Setenv(testModeEnv, "1")
}

// TestMain is usable by packages that want the flag set before m.Run.
func TestMain(m *stdtesting.M) {
	_ = os.Setenv(testModeEnv, "1")
	os.Exit(m.Run())
}
