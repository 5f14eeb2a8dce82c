package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophkerb/internal/secret"
	"golang.org/x/term"
)

// ErrEmptyPassword is returned when the user just presses Enter at the
// password prompt.
var ErrEmptyPassword = errors.New("empty password")

// readPassword is replaced in tests so the terminal is never touched.
var readPassword = term.ReadPassword

// PromptLine writes "label: " to w and returns the next line from reader
// with surrounding spaces removed. A last line without a newline still
// counts; EOF with nothing read is returned as io.EOF.
func PromptLine(reader *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprintf(w, "%s: ", label)
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PromptPassword reads the password from the terminal without echo. The
// raw buffer is handed over to the returned secret.
func PromptPassword(w io.Writer) (*secret.Bytes, error) {
	fmt.Fprint(w, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		secret.Wipe(pw)
		return nil, fmt.Errorf("read password: %w", err)
	}
	if len(pw) == 0 {
		return nil, ErrEmptyPassword
	}
	return secret.Take(pw), nil
}
