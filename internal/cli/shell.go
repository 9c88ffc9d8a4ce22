package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
)

const shellHelp = `Type any labctl command without the "labctl" prefix, for example:
  machine add ULTIMAKER
  job add "Max Print" -m ULTIMAKER -o Amy -d 2.5
Shell commands:
  undo    revert the last change
  redo    reapply the last undone change
  help    show this text
  exit    leave the shell`

func (a *app) buildShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session with undo and redo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShell(cmd, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// runShell reads one command per line until exit or end of input. A failed
// command prints its error and the session continues.
func (a *app) runShell(parent *cobra.Command, in io.Reader, out, errOut io.Writer) error {
	a.inShell = true
	defer func() { a.inShell = false }()

	fmt.Fprintln(out, "labctl shell. Type help for commands, exit to leave.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}
		args, err := splitArgs(scanner.Text())
		if err != nil {
			fmt.Fprintln(errOut, "Error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprintln(out, shellHelp)
			continue
		case "undo":
			err = a.undo(parent, out)
		case "redo":
			err = a.redo(parent, out)
		case "shell":
			err = errors.New("already in a shell")
		default:
			err = a.runLine(parent, args, in, out, errOut)
		}
		if err != nil {
			fmt.Fprintln(errOut, "Error:", err)
		}
	}
	return scanner.Err()
}

// runLine runs args against a fresh command tree so flag values never leak
// from one line into the next.
func (a *app) runLine(parent *cobra.Command, args []string, in io.Reader, out, errOut io.Writer) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	root.SilenceErrors = true
	return root.ExecuteContext(parent.Context())
}

func (a *app) undo(cmd *cobra.Command, out io.Writer) error {
	m := a.manager()
	if err := m.Undo(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Undo success!")
	return a.ctrl.Save(cmd.Context())
}

func (a *app) redo(cmd *cobra.Command, out io.Writer) error {
	m := a.manager()
	if err := m.Redo(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Redo success!")
	return a.ctrl.Save(cmd.Context())
}

// splitArgs splits a line into words with POSIX shell quoting. Pipes,
// redirections and command separators are rejected.
func splitArgs(line string) ([]string, error) {
	p := shellwords.NewParser()
	args, err := p.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q: %w", line, err)
	}
	if p.Position >= 0 {
		return nil, fmt.Errorf("unsupported shell operator at column %d", p.Position+1)
	}
	return args, nil
}
