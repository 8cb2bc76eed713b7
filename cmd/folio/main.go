package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// exitError carries a process exit code. An empty message prints nothing.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.msg
}

func main() {
	os.Exit(run(context.Background(), newApp(), os.Args[1:]))
}

func run(ctx context.Context, a *app, args []string) int {
	cmd := newRootCmd(a)
	// cobra reads os.Args when given nil.
	cmd.SetArgs(append([]string{}, args...))
	return exitCode(cmd.ExecuteContext(ctx), a.errOut)
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(stderr, ee.msg)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}
