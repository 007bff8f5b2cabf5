package extract

import (
	"fmt"
	"strings"
)

// at walks v through nested arrays, checking type and bounds at every step
func at(v any, path ...int) (any, error) {
	cur := v
	for i, idx := range path {
		arr, ok := cur.([]any)
		if !ok {
			return nil, shapeErr(path[:i+1], "expected array, got %s", typeName(cur))
		}
		if idx < 0 || idx >= len(arr) {
			return nil, shapeErr(path[:i+1], "index out of range (len %d)", len(arr))
		}
		cur = arr[idx]
	}
	return cur, nil
}

// str returns the string at path
func str(v any, path ...int) (string, error) {
	x, err := at(v, path...)
	if err != nil {
		return "", err
	}
	s, ok := x.(string)
	if !ok {
		return "", shapeErr(path, "expected string, got %s", typeName(x))
	}
	return s, nil
}

// strs returns the list of strings at path; non-string members are skipped
func strs(v any, path ...int) ([]string, error) {
	x, err := at(v, path...)
	if err != nil {
		return nil, err
	}
	arr, ok := x.([]any)
	if !ok {
		return nil, shapeErr(path, "expected array, got %s", typeName(x))
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// optionalStr returns the string at path or "" when the shape does not match
func optionalStr(v any, path ...int) string {
	s, err := str(v, path...)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func shapeErr(path []int, format string, args ...any) error {
	return &Error{
		Stage: StageShape,
		Path:  formatPath(path),
		Err:   fmt.Errorf("%w: "+format, append([]any{ErrShape}, args...)...),
	}
}

func formatPath(path []int) string {
	var sb strings.Builder
	for _, idx := range path {
		fmt.Fprintf(&sb, "[%d]", idx)
	}
	return sb.String()
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, int64, int:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
