package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/MeKo-Tech/cardcrop/internal/server"
	"github.com/cucumber/godog"
)

func (testCtx *TestContext) registerServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the crop server is running$`, testCtx.theCropServerIsRunning)
	sc.Step(`^the crop server is running with a limit of (\d+) requests? per minute$`, testCtx.theCropServerIsRunningWithLimit)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I upload "([^"]*)" as "([^"]*)" to "([^"]*)"$`, testCtx.iUpload)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should be a PNG image$`, testCtx.theResponseShouldBeAPNG)
	sc.Step(`^the response JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseJSONFieldShouldBe)
	sc.Step(`^the response header "([^"]*)" should be set$`, testCtx.theResponseHeaderShouldBeSet)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
}

func (testCtx *TestContext) theCropServerIsRunning() error {
	return testCtx.startServer(server.RateLimitConfig{})
}

func (testCtx *TestContext) theCropServerIsRunningWithLimit(perMinute int) error {
	return testCtx.startServer(server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute})
}

// startServer serves the real pipeline on a loopback listener.
func (testCtx *TestContext) startServer(rl server.RateLimitConfig) error {
	pl, err := pipeline.NewBuilder().Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	srv := server.NewServer(server.Config{
		Host:           "localhost",
		CORSOrigin:     "*",
		MaxUploadMB:    10,
		TimeoutSec:     30,
		OverlayEnabled: true,
		RateLimit:      rl,
	}, pl)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	ts := httptest.NewServer(mux)

	testCtx.Server = srv
	testCtx.ServerURL = ts.URL
	testCtx.closeServer = func() {
		ts.Close()
		_ = srv.Close()
	}
	return nil
}

func (testCtx *TestContext) iGET(path string) error {
	if testCtx.ServerURL == "" {
		return fmt.Errorf("server is not running")
	}
	resp, err := http.Get(testCtx.ServerURL + path) //nolint:gosec // loopback test server
	if err != nil {
		return err
	}
	return testCtx.storeResponse(resp)
}

// iUpload posts a file of the working directory as a multipart field.
func (testCtx *TestContext) iUpload(name, field, path string) error {
	if testCtx.ServerURL == "" {
		return fmt.Errorf("server is not running")
	}
	data, err := os.ReadFile(testCtx.path(name))
	if err != nil {
		return err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filepath.Base(name))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	resp, err := http.Post(testCtx.ServerURL+path, w.FormDataContentType(), &body) //nolint:gosec // loopback test server
	if err != nil {
		return err
	}
	return testCtx.storeResponse(resp)
}

func (testCtx *TestContext) storeResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = data
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeAPNG() error {
	if ct := testCtx.LastHTTPHeaders.Get("Content-Type"); ct != "image/png" {
		return fmt.Errorf("expected image/png, got %q", ct)
	}
	if !bytes.HasPrefix(testCtx.LastHTTPResponse, []byte("\x89PNG")) {
		return fmt.Errorf("response body is not a PNG")
	}
	return nil
}

// theResponseJSONFieldShouldBe compares a top-level or dotted field, with
// numeric path elements indexing arrays.
func (testCtx *TestContext) theResponseJSONFieldShouldBe(field, want string) error {
	var v any
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &v); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	for _, key := range strings.Split(field, ".") {
		switch node := v.(type) {
		case map[string]any:
			v = node[key]
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return fmt.Errorf("bad index %q in %s", key, field)
			}
			v = node[i]
		default:
			return fmt.Errorf("field %s not found", field)
		}
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("field %s is %q, expected %q", field, got, want)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if testCtx.LastHTTPHeaders.Get(name) == "" {
		return fmt.Errorf("header %s is not set", name)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(string(testCtx.LastHTTPResponse), text) {
		return fmt.Errorf("response does not contain %q: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}
