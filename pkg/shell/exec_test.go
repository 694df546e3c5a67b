package shell

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	out, err := Run("sh", "-c", "echo hello")
	require.NoError(t, err)
	require.Equal(t, "hello\n", out)

	_, err = Run("sh", "-c", "echo oops >&2; exit 3")
	require.Error(t, err)
	require.Equal(t, "oops", err.Error())

	// A silent failure falls back to the exit status.
	_, err = Run("sh", "-c", "exit 7")
	require.Error(t, err)
	require.Contains(t, err.Error(), "7")

	_, err = Run("no-such-program-on-any-path")
	require.Error(t, err)
}

func TestTail(t *testing.T) {
	require.Equal(t, "", tail("", 3))
	require.Equal(t, "a\nb", tail("a\nb\n", 3))

	long := strings.Join([]string{"1", "2", "", "3", "4", "5"}, "\n")
	require.Equal(t, "3\n4\n5", tail(long, 3))
}
