// Package shell wraps the external video tools (ffprobe, ffmpeg) that the
// toolkit shells out to. Both programs explain failures on stderr, so a
// failed Run reports that instead of the bare exit status.
package shell

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"
)

// ffmpeg writes pages of progress to stderr before the line that matters,
// so errors keep only the tail.
const errLines = 6

// Run executes a program, waits for it, and returns everything it wrote to
// stdout. On failure the error carries the tail of the program's stderr,
// falling back to the exit status when the program said nothing.
func Run(name string, args ...string) (string, error) {
	stdout := bytes.Buffer{}
	stderr := bytes.Buffer{}
	cmd := exec.Command(name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		if msg := tail(stderr.String(), errLines); msg != "" {
			return "", errors.New(msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

// tail returns the last n non-blank lines of s.
func tail(s string, n int) string {
	lines := []string{}
	for _, ln := range strings.Split(s, "\n") {
		if strings.TrimSpace(ln) != "" {
			lines = append(lines, strings.TrimRight(ln, "\r"))
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
