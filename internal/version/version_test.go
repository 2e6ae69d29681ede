package version

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short and Full return non-empty consistent information.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
	require.Contains(t, Full(), Name)
}

// TestAttachCobraVersionCommand runs the attached subcommand and checks its output.
func TestAttachCobraVersionCommand(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{Use: Name}
	AttachCobraVersionCommand(root)

	var out bytes.Buffer

	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), Full())
}

// TestAttachCobraVersionCommand_SkipsRootHook prints the version even when the root setup fails.
func TestAttachCobraVersionCommand_SkipsRootHook(t *testing.T) {
	t.Parallel()

	errBrokenConfig := errors.New("unmarshal settings: yaml: line 1")

	root := &cobra.Command{
		Use: Name,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return errBrokenConfig
		},
		RunE: func(*cobra.Command, []string) error { return nil },
	}
	AttachCobraVersionCommand(root)

	var out bytes.Buffer

	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), Full())

	root.SetArgs([]string{})
	require.ErrorIs(t, root.Execute(), errBrokenConfig)
}
