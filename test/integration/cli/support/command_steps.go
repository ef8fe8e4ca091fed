package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/cardcrop/cmd/cardcrop/cmd"
	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/MeKo-Tech/cardcrop/internal/testutil"
	"github.com/cucumber/godog"
)

func (testCtx *TestContext) registerCommandSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "cardcrop ([^"]*)"$`, testCtx.iRun)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the error should contain "([^"]*)"$`, testCtx.theErrorShouldContain)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the output should hold (\d+) JSON records?$`, testCtx.theOutputShouldHoldRecords)
	sc.Step(`^record (\d+) should (succeed|fail)$`, testCtx.recordShould)
	sc.Step(`^record (\d+) should have kind "([^"]*)"$`, testCtx.recordShouldHaveKind)
}

// iRun executes the command line in-process. Arguments are split on spaces
// and {dir} names the scenario directory.
func (testCtx *TestContext) iRun(args string) error {
	testCtx.LastCommand = "cardcrop " + args

	root := cmd.NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	argv := strings.Fields(testCtx.expand(args))
	root.SetArgs(argv)

	// Relative paths resolve against the scenario directory.
	prev, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := os.Chdir(testCtx.WorkDir); err != nil {
		return err
	}
	defer func() { _ = os.Chdir(prev) }()

	start := time.Now()
	testCtx.LastError = root.ExecuteContext(context.Background())
	testCtx.LastDuration = time.Since(start)
	testCtx.LastOutput = out.String()
	testCtx.LastStderr = errOut.String()
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command %q failed: %w\nstderr:\n%s", testCtx.LastCommand, testCtx.LastError, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command %q succeeded, expected a failure\noutput:\n%s", testCtx.LastCommand, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldContain(text string) error {
	if testCtx.LastError == nil {
		return errors.New("command did not fail")
	}
	if !strings.Contains(testCtx.LastError.Error(), text) {
		return fmt.Errorf("error %q does not contain %q", testCtx.LastError, text)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(text string) error {
	text = testCtx.expand(text)
	if !strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output does not contain %q:\n%s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if !testutil.FileExists(testCtx.path(name)) {
		return fmt.Errorf("file %s does not exist", name)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	if testutil.FileExists(testCtx.path(name)) {
		return fmt.Errorf("file %s exists", name)
	}
	return nil
}

func (testCtx *TestContext) records() ([]pipeline.Record, error) {
	var recs []pipeline.Record
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &recs); err != nil {
		return nil, fmt.Errorf("output is not a JSON record list: %w\n%s", err, testCtx.LastOutput)
	}
	return recs, nil
}

func (testCtx *TestContext) record(n int) (pipeline.Record, error) {
	recs, err := testCtx.records()
	if err != nil {
		return pipeline.Record{}, err
	}
	if n < 1 || n > len(recs) {
		return pipeline.Record{}, fmt.Errorf("record %d out of range, output holds %d", n, len(recs))
	}
	return recs[n-1], nil
}

func (testCtx *TestContext) theOutputShouldHoldRecords(n int) error {
	recs, err := testCtx.records()
	if err != nil {
		return err
	}
	if len(recs) != n {
		return fmt.Errorf("expected %d records, got %d", n, len(recs))
	}
	return nil
}

func (testCtx *TestContext) recordShould(n int, outcome string) error {
	rec, err := testCtx.record(n)
	if err != nil {
		return err
	}
	if want := outcome == "succeed"; rec.Success != want {
		return fmt.Errorf("record %d of %s: success=%v, expected %v", n, rec.SourcePath, rec.Success, want)
	}
	return nil
}

func (testCtx *TestContext) recordShouldHaveKind(n int, kind string) error {
	rec, err := testCtx.record(n)
	if err != nil {
		return err
	}
	if rec.Kind != kind {
		return fmt.Errorf("record %d has kind %q, expected %q", n, rec.Kind, kind)
	}
	return nil
}
