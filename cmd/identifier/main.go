package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/testsmith/testsmith/cmd/identifier/cmds"
)

// Returned for failures that carry no exit code of their own, such as bad flags
// or unreadable files.
const exitUsage = 2

func runApp(ctx context.Context) int {
	err := cmds.Execute(ctx)
	var ee cmds.ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ee):
		if ee.Err != nil {
			fmt.Fprintln(os.Stderr, "identifier:", ee.Err)
		}
		return ee.Code
	default:
		fmt.Fprintln(os.Stderr, "identifier:", err)
		return exitUsage
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runApp(ctx)
	stop()
	os.Exit(code)
}
