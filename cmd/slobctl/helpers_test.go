package main

import (
	"bytes"
	"os"
	"testing"
)

var envKeys = []string{
	"SLOB_TOTAL_POOLS",
	"SLOB_POOLS",
	"SLOB_BACKING",
	"SLOB_POLICY",
	"SLOB_THREAD_SAFE",
	"SLOB_LOG_LEVEL",
	"SLOB_LOG_FORMAT",
}

// clearEnv unsets every SLOB_* variable for the duration of the test,
// including variables loaded from dotenv files during the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

// runCommand executes slobctl with args and captures its output streams.
func runCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	// Reset flag state left over from earlier runs
	envFile, logLevel, logFormat, jsonOut = "", "", "", false
	exerciseCount, exerciseSize = 10, 4

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}
