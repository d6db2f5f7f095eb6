package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"doclookup/internal/odata"

	"go.uber.org/zap"
)

type callRecord struct {
	Name string
	Args []string
	MS   int64
	OK   bool
	Err  string
}

func trackCall[T any](logger *zap.Logger, name string, args []string, fn func() (T, error)) (T, callRecord, error) {
	start := time.Now()
	result, err := fn()
	elapsed := time.Since(start)
	record := callRecord{
		Name: name,
		Args: args,
		MS:   elapsed.Milliseconds(),
		OK:   err == nil,
	}
	if err != nil {
		record.Err = err.Error()
	}
	logger.Info("command",
		zap.String("name", name),
		zap.Strings("args", args),
		zap.Int64("ms", record.MS),
		zap.Bool("ok", record.OK),
		zap.String("err", record.Err),
	)
	return result, record, err
}

// errorHint suggests what the user can do about a transport failure.
func errorHint(err error) string {
	var apiErr *odata.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, odata.ErrUnauthorized):
		return "Access denied: check USERNAME and PASSWORD."
	case errors.Is(err, context.DeadlineExceeded):
		return "The service did not answer in time. Raise TIMEOUT or try again."
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 500:
		return fmt.Sprintf("The service is unavailable (%s). Try again later.", apiErr.Status)
	default:
		return ""
	}
}

// splitArgs splits a REPL line on whitespace. Double quotes group words,
// so SoldToParty="ACME Corp" is one argument.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case !quoted && (r == ' ' || r == '\t'):
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, usageError{Message: "unterminated quote"}
	}
	if started {
		args = append(args, current.String())
	}
	return args, nil
}
