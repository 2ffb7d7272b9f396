package errors

import (
	"fmt"
	"strings"
)

// Render formats err for terminal output. Structured errors get their
// suggestion and code; anything else prints as a plain error line.
// Returns "" for nil.
func Render(err error) string {
	if err == nil {
		return ""
	}

	me, ok := asMathdex(err)
	if !ok {
		return fmt.Sprintf("Error: %s\n", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", me.Message)
	if me.Hint != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", me.Hint)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", me.Code)
	return sb.String()
}

// Attrs flattens err into slog attribute values. Structured errors
// contribute their classification and fields; unstructured errors just
// their message. Returns nil for nil.
func Attrs(err error) map[string]any {
	if err == nil {
		return nil
	}

	me, ok := asMathdex(err)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	attrs := map[string]any{
		"error_code": me.Code.String(),
		"message":    me.Message,
		"subsystem":  string(me.Code.Subsystem()),
		"severity":   me.Code.Severity().String(),
		"retryable":  me.Code.Retryable(),
	}
	if me.Err != nil {
		attrs["cause"] = me.Err.Error()
	}
	if me.Hint != "" {
		attrs["hint"] = me.Hint
	}
	for k, v := range me.Fields {
		attrs["field_"+k] = v
	}
	return attrs
}
