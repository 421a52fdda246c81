package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// useBufferWriters swaps stdOut/stdErr with in-memory buffers for the duration
// of a test, allowing assertions on CLI output without polluting test logs.
func useBufferWriters(t *testing.T) {
	t.Helper()

	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}

	prevOut := stdOut
	prevErr := stdErr

	stdOut = outBuf
	stdErr = errBuf

	t.Cleanup(func() {
		stdOut = prevOut
		stdErr = prevErr
	})
}

// stdOutBuffer returns the in-use stdout buffer when useBufferWriters is active.
func stdOutBuffer() *bytes.Buffer {
	buf, _ := stdOut.(*bytes.Buffer)
	return buf
}

// stdErrBuffer returns the in-use stderr buffer when useBufferWriters is active.
func stdErrBuffer() *bytes.Buffer {
	buf, _ := stdErr.(*bytes.Buffer)
	return buf
}

// unsetEnv clears an environment variable for the duration of a test.
// t.Setenv can only set values, while dotenv merge tests need real absence.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	orig, had := os.LookupEnv(key)
	if !had {
		return
	}
	os.Unsetenv(key)
	t.Cleanup(func() { os.Setenv(key, orig) })
}

// writeEnvFile drops a dotenv file into a fresh temp dir and returns its path.
func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "custom.env")
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("写入 dotenv 失败: %v", err)
	}
	return file
}
