package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"evently/internal/auth"
)

func addHashPassword(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print an argon2id hash for basic_auth.password_hash",
		Long: `Reads a password twice and prints its argon2id hash. On a terminal the
input is hidden; otherwise two lines are read from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}

// readPassword prompts for a password and its confirmation.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	var first, second string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		read := func(label string) (string, error) {
			_, _ = fmt.Fprint(prompt, label)
			b, err := term.ReadPassword(int(f.Fd()))
			_, _ = fmt.Fprintln(prompt)
			return string(b), err
		}
		var err error
		if first, err = read("Enter password:   "); err != nil {
			return "", err
		}
		if second, err = read("Confirm password: "); err != nil {
			return "", err
		}
	} else {
		sc := bufio.NewScanner(in)
		lines := make([]string, 0, 2)
		for len(lines) < 2 && sc.Scan() {
			lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
		}
		if err := sc.Err(); err != nil {
			return "", err
		}
		if len(lines) < 2 {
			return "", errors.New("expected the password and its confirmation on two lines")
		}
		first, second = lines[0], lines[1]
	}

	if first == "" {
		return "", errors.New("password cannot be empty")
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}
