package internal

import (
	"log"
	"os"
)

func NewLogger(component string) *log.Logger {
	prefix := "sechooks"
	if component != "" {
		prefix = prefix + "/" + component
	}
	return log.New(os.Stdout, prefix+" ", log.LstdFlags|log.Lmicroseconds)
}

// WithRequestID derives a logger that tags every line with the request ID.
func WithRequestID(base *log.Logger, requestID string) *log.Logger {
	if base == nil {
		base = log.Default()
	}
	if requestID == "" {
		return base
	}
	return log.New(base.Writer(), base.Prefix()+"["+requestID+"] ", base.Flags())
}
