package errclass

import (
	"errors"
	"strings"
)

// skipSubstrings lists the failure texts recognised as transient,
// environment-caused conditions. Classification is data, not control
// flow: a test suite seeing one of these skips instead of failing.
var skipSubstrings = []string{
	"rate limit",
	"429",
	"too many requests",
	"permission denied",
	"operation not permitted",
	"text file busy",
	"resource temporarily unavailable",
	"connection refused",
	"temporary failure in name resolution",
	"no space left on device",
}

// skipCodes lists error classes that are always soft-skippable.
var skipCodes = map[string]bool{
	ErrOperationTimeout.Code: true,
}

// Skippable reports whether err should be treated as a soft skip rather
// than a hard failure. Validation errors (arguments, worker binary
// shape, config parsing) are never skippable.
func Skippable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case ErrInvalidArguments.Code, ErrWorkerMissing.Code,
			ErrWorkerNotFile.Code, ErrWorkerNotExecutable.Code,
			ErrConfigParse.Code, ErrPathInvalid.Code, ErrNameInvalid.Code:
			return false
		}
		if skipCodes[e.Code] {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, s := range skipSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
