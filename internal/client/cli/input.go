package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dmitrijs2005/campusgive/internal/common"
)

var (
	ErrEmptyPassword    = errors.New("password must not be empty")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// readPassword and passwordFd are test seams: the former reads without echo,
// the latter picks the terminal it reads from.
var (
	readPassword = term.ReadPassword
	passwordFd   = func() int { return int(os.Stdin.Fd()) }
)

// GetSimpleText writes "prompt: " to w and reads one line from reader with
// surrounding whitespace trimmed. A final line without a newline is still
// returned; EOF before any input is an error.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetPassword writes "prompt: " to w and reads a non-empty password without
// echo. The caller wipes the returned slice.
func GetPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return nil, err
	}
	pw, err := readPassword(passwordFd())
	fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	if len(pw) == 0 {
		return nil, ErrEmptyPassword
	}
	return pw, nil
}

// GetNewPassword asks for a password twice and returns it only if both
// entries match. The confirmation copy is always wiped; on mismatch both are.
func GetNewPassword(w io.Writer) ([]byte, error) {
	pw, err := GetPassword(w, "Choose password")
	if err != nil {
		return nil, err
	}
	confirm, err := GetPassword(w, "Repeat password")
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(confirm)
	if !bytes.Equal(pw, confirm) {
		common.WipeByteArray(pw)
		return nil, ErrPasswordMismatch
	}
	return pw, nil
}
