package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// splitCommand splits a command line on spaces, keeping single- or
// double-quoted sections together.
func splitCommand(s string) ([]string, error) {
	var (
		parts []string
		cur   strings.Builder
		quote rune
		has   bool
	)
	for _, r := range s {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
			cur.WriteRune(r)
		case r == '\'' || r == '"':
			quote, has = r, true
		case r == ' ' || r == '\t':
			if has || cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
				has = false
			}
		default:
			cur.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	if has || cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts, nil
}

// iRunCommand runs a scanprep command line. The leading "scanprep" is
// replaced by the binary under test.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substitute(command)
	testCtx.LastCommand = command

	parts, err := splitCommand(command)
	if err != nil {
		return err
	}
	if len(parts) == 0 || parts[0] != "scanprep" {
		return fmt.Errorf("commands must start with scanprep: %q", command)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, testCtx.Binary, parts[1:]...)
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	testCtx.LastDuration = time.Since(start)
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err

	testCtx.LastExitCode = 0
	if err != nil {
		exitError := &exec.ExitError{}
		if !errors.As(err, &exitError) {
			return fmt.Errorf("failed to run %s: %w", testCtx.Binary, err)
		}
		testCtx.LastExitCode = exitError.ExitCode()
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d\nStdout: %s\nStderr: %s",
			testCtx.LastExitCode, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	expected = testCtx.substitute(expected)
	if !strings.Contains(testCtx.LastOutput, expected) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeEmpty() error {
	if strings.TrimSpace(testCtx.LastOutput) != "" {
		return fmt.Errorf("expected no output, got: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBe(doc *godog.DocString) error {
	want := strings.TrimSpace(testCtx.substitute(doc.Content))
	if got := strings.TrimSpace(testCtx.LastOutput); got != want {
		return fmt.Errorf("output mismatch\nwant: %q\ngot:  %q", want, got)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(expected string) error {
	if !strings.Contains(testCtx.LastStderr, expected) {
		return fmt.Errorf("stderr does not mention '%s'\nActual stderr: %s", expected, testCtx.LastStderr)
	}
	return nil
}

// theOutputShouldBeValidJSON checks stdout parses as one JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &js); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldHaveLines counts non-empty stdout lines.
func (testCtx *TestContext) theOutputShouldHaveLines(n int) error {
	count := 0
	for _, l := range strings.Split(testCtx.LastOutput, "\n") {
		if strings.TrimSpace(l) != "" {
			count++
		}
	}
	if count != n {
		return fmt.Errorf("expected %d lines, got %d\nOutput: %s", n, count, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, testCtx.substitute(value))
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(testCtx.path(testCtx.substitute(name))); err != nil {
		return fmt.Errorf("expected file %s: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	if _, err := os.Stat(testCtx.path(testCtx.substitute(name))); err == nil {
		return fmt.Errorf("file %s should not exist", name)
	}
	return nil
}

func (testCtx *TestContext) aConfigFileWith(name string, doc *godog.DocString) error {
	return os.WriteFile(testCtx.path(name), []byte(doc.Content), 0o600)
}

// RegisterCommonSteps registers the command and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^I run '([^']*)'$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should be empty$`, testCtx.theOutputShouldBeEmpty)
	sc.Step(`^the output should be:$`, testCtx.theOutputShouldBe)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should have (\d+) lines?$`, testCtx.theOutputShouldHaveLines)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^a config file "([^"]*)" with:$`, testCtx.aConfigFileWith)
}
