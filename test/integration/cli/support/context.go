// Package support holds the step definitions of the cardcrop feature suite.
package support

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/server"
	"github.com/cucumber/godog"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastStderr   string
	LastError    error
	LastDuration time.Duration

	// Scenario working directory, created per scenario
	WorkDir string

	// HTTP state
	Server             *server.Server
	ServerURL          string
	closeServer        func()
	LastHTTPStatusCode int
	LastHTTPResponse   []byte
	LastHTTPHeaders    http.Header
}

// NewTestContext creates a context with a fresh working directory.
func NewTestContext() (*TestContext, error) {
	dir, err := os.MkdirTemp("", "cardcrop-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{WorkDir: dir}, nil
}

// Register installs every step definition on sc.
func (testCtx *TestContext) Register(sc *godog.ScenarioContext) {
	testCtx.registerImageSteps(sc)
	testCtx.registerCommandSteps(sc)
	testCtx.registerServerSteps(sc)
}

// Cleanup stops the server and removes the working directory.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.closeServer != nil {
		testCtx.closeServer()
		testCtx.closeServer = nil
	}
	if err := os.RemoveAll(testCtx.WorkDir); err != nil {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.WorkDir, err)
	}
	return nil
}

// path resolves name inside the working directory.
func (testCtx *TestContext) path(name string) string {
	return filepath.Join(testCtx.WorkDir, filepath.FromSlash(name))
}

// expand replaces the {dir} placeholder with the working directory.
func (testCtx *TestContext) expand(s string) string {
	return strings.ReplaceAll(s, "{dir}", testCtx.WorkDir)
}
