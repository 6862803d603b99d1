package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Status(ctx context.Context) error
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Social(ctx context.Context, provider, state string) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the campusgive CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF, when ctx is done, or when
// the user types "exit" or "quit".
//
// Prompt & Commands
//
//	Anonymous:
//	  - help                       show available commands
//	  - status                     show the current session
//	  - register                   create an account
//	  - login                      sign in with email and password
//	  - social <provider> [state]  sign in through a provider popup
//	  - refresh                    re-check the session with the backend
//	  - exit | quit                leave the program
//
//	Signed in:
//	  - help, status, refresh, exit | quit
//	  - logout                     sign out
//
// Errors returned by command handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("cg%s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: status, refresh, logout, exit")
			} else {
				printlnFn("Available commands: status, register, login, social <provider> [state], refresh, exit")
			}

		case "status":
			err = a.Status(ctx)

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "social":
			if len(args) == 0 {
				printlnFn("Usage: social <provider> [state]")
				continue
			}
			state := ""
			if len(args) > 1 {
				state = args[1]
			}
			err = a.Social(ctx, args[0], state)

		case "refresh":
			err = a.Refresh(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
