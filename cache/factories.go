package cache

import (
	"fmt"
	"os"

	"github.com/huykn/course-marketplace/types"
)

// NewNoOpLogger creates a logger that discards everything.
func NewNoOpLogger() Logger {
	return types.NoOpLogger{}
}

// ConsoleLogger writes one line per message to stdout.
type ConsoleLogger struct {
	prefix string
}

// NewConsoleLogger creates a new console logger.
func NewConsoleLogger(prefix string) Logger {
	return &ConsoleLogger{prefix: prefix}
}

func (cl *ConsoleLogger) Debug(msg string, args ...any) { cl.print("DEBUG", msg, args) }
func (cl *ConsoleLogger) Info(msg string, args ...any)  { cl.print("INFO", msg, args) }
func (cl *ConsoleLogger) Warn(msg string, args ...any)  { cl.print("WARN", msg, args) }
func (cl *ConsoleLogger) Error(msg string, args ...any) { cl.print("ERROR", msg, args) }

func (cl *ConsoleLogger) print(level, msg string, args []any) {
	line := fmt.Sprintf("[%s] %s: %s", level, cl.prefix, msg)
	for i := 0; i+1 < len(args); i += 2 {
		line += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	if len(args)%2 == 1 {
		line += fmt.Sprintf(" %v", args[len(args)-1])
	}
	fmt.Fprintln(os.Stdout, line)
}
