package main

import (
	"os"
	"strings"

	"github.com/copyleftdev/dotbind/internal/errors"
	"github.com/copyleftdev/dotbind/internal/logging"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitLogger().Error("Command failed", failureFields(err))
		os.Exit(1)
	}
}

// exitLogger falls back to stderr when the command failed before the
// configured logger existed.
func exitLogger() *logging.Logger {
	if logger != nil {
		return logger
	}
	return logging.New(logging.ErrorLevel, os.Stderr)
}

// failureFields describes err, with the stack of the innermost wrapped
// *errors.Error when there is one.
func failureFields(err error) map[string]interface{} {
	fields := map[string]interface{}{"error": err.Error()}
	var e *errors.Error
	if errors.As(err, &e) && len(e.StackTrace()) > 0 {
		fields["stack"] = strings.Join(e.StackTrace(), "\n")
	}
	return fields
}
