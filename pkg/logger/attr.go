package logger

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// ItemID records the queue item identifier under the key "item_id".
// If id is empty, it returns an empty Attr.
func ItemID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("item_id", id)
}

// State records a queue item state under the key "state".
func State(state fmt.Stringer) slog.Attr {
	if state == nil {
		return slog.Attr{}
	}
	return slog.String("state", state.String())
}

// Transport records the transport name under the key "transport".
func Transport(name string) slog.Attr {
	return slog.String("transport", name)
}

// Recipients records the number of envelope recipients under the key "recipients".
func Recipients(n int) slog.Attr {
	return slog.Int("recipients", n)
}

// Count records a counter under the key "count".
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
