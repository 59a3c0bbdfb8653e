package testlog

import (
	"testing"

	logs "github.com/danmuck/ipkchat/internal/logging"
)

// Start configures the test log profile and brackets the test in the log.
func Start(t *testing.T) {
	t.Helper()
	logs.ConfigureTests()
	logs.Infof("test=%s start", t.Name())
	t.Cleanup(func() {
		logs.Debugf("test=%s done failed=%t", t.Name(), t.Failed())
	})
}
