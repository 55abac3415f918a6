package logger

import (
	"fmt"
)

type Logger interface {
	Log(format string, args ...interface{})
}

// logger is a glorious logger implementation.
type logger struct {
	prefix string
}

func NewLogger(prefix string) *logger {
	return &logger{
		prefix: prefix,
	}
}

func (l *logger) Log(format string, args ...interface{}) {
	fmt.Printf("[%s] %s\n", l.prefix, fmt.Sprintf(format, args...))
}
