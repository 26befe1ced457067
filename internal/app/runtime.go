package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv is set by the geoapp testing package.
const TestModeEnv = "GEOAPP_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	return on
})

// InTestMode reports whether binaries should skip serving and request
// logging. The environment is read once per process.
func InTestMode() bool {
	return testMode()
}
