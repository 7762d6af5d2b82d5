package main

import (
	"os"
	"path/filepath"
	"testing"
)

// getBinaryPath returns the path to the listing_audit binary for testing
func getBinaryPath(t *testing.T) string {
	binaryName := "listing_audit"
	if testing.Short() {
		t.Skip("Skipping CLI tests in short mode")
	}

	binaryPath := filepath.Join("..", "..", "bin", binaryName)
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Skipf("Binary not found at %s, build it first with 'go build -o bin/listing_audit ./cmd/listing_audit'", binaryPath)
	}

	return binaryPath
}

// writeFile writes content to name inside dir and returns the full path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
