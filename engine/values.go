package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/timzifer/formlogic/config"
)

// FileMeta describes an uploaded file answer.
type FileMeta struct {
	Name        string
	Size        int64
	ContentType string
}

// convertValue normalizes a raw answer into the canonical Go shape for the
// question type: string for text and single-choice answers, []string for
// checkboxes and rankings, float64 for scales and sliders, map[string]string
// for matrix answers, time.Time for dates and FileMeta for uploads.
func convertValue(kind config.QuestionType, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	switch kind {
	case config.QuestionShortText, config.QuestionLongText,
		config.QuestionMultipleChoice, config.QuestionDropdown:
		switch v := value.(type) {
		case string:
			return v, nil
		default:
			return nil, fmt.Errorf("expected string value, got %T", value)
		}
	case config.QuestionCheckboxes, config.QuestionRanking:
		return convertStringSlice(value)
	case config.QuestionLinearScale, config.QuestionSlider:
		return convertFloatValue(value)
	case config.QuestionMatrix:
		return convertStringMap(value)
	case config.QuestionDateTime:
		return convertDateValue(value)
	case config.QuestionFileUpload:
		return convertFileValue(value)
	default:
		return nil, fmt.Errorf("unsupported question type %q", kind)
	}
}

func convertFloatValue(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("invalid float value %v", v)
		}
		return v, nil
	case float32:
		return convertFloatValue(float64(v))
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("parse number from string: %w", err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("expected number-compatible value, got %T", value)
	}
}

func convertStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list entry, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", value)
	}
}

func convertStringMap(value interface{}) (map[string]string, error) {
	switch v := value.(type) {
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, item := range v {
			out[key] = item
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]string, len(v))
		for key, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string matrix entry for row %q, got %T", key, item)
			}
			out[key] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected matrix map, got %T", value)
	}
}

func convertDateValue(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		if v == "" {
			return time.Time{}, fmt.Errorf("date string is empty")
		}
		layouts := []string{time.RFC3339, "2006-01-02", time.RFC3339Nano}
		for _, layout := range layouts {
			parsed, err := time.Parse(layout, v)
			if err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("parse date value %q: unsupported format", v)
	default:
		return time.Time{}, fmt.Errorf("expected date-compatible value, got %T", value)
	}
}

func convertFileValue(value interface{}) (FileMeta, error) {
	switch v := value.(type) {
	case FileMeta:
		return v, nil
	case map[string]interface{}:
		meta := FileMeta{}
		if name, ok := v["name"].(string); ok {
			meta.Name = name
		}
		if contentType, ok := v["content_type"].(string); ok {
			meta.ContentType = contentType
		}
		if size, ok := v["size"]; ok {
			parsed, err := convertFloatValue(size)
			if err != nil {
				return FileMeta{}, fmt.Errorf("file size: %w", err)
			}
			meta.Size = int64(parsed)
		}
		if meta.Name == "" {
			return FileMeta{}, fmt.Errorf("file answer is missing a name")
		}
		return meta, nil
	default:
		return FileMeta{}, fmt.Errorf("expected file metadata, got %T", value)
	}
}

// isEmptyValue reports whether a converted answer counts as unanswered:
// nil, blank text, empty collections and zero file metadata are all empty.
func isEmptyValue(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case map[string]string:
		return len(v) == 0
	case float64:
		return false
	case time.Time:
		return v.IsZero()
	case FileMeta:
		return v == FileMeta{}
	default:
		return false
	}
}

// numericValue extracts a float from a converted or raw answer.
func numericValue(value interface{}) (float64, bool) {
	parsed, err := convertFloatValue(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// cloneValue returns a copy deep enough that callers can hand results to the
// rendering layer without aliasing the answer map.
func cloneValue(value interface{}) interface{} {
	switch v := value.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, item := range v {
			out[key] = item
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// valuesEqual compares two converted answers structurally. Slices compare
// element-wise in order, maps key-wise.
func valuesEqual(a, b interface{}) bool {
	if an, ok := numericValue(a); ok {
		if bn, ok := numericValue(b); ok {
			return an == bn
		}
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []string:
		bv, ok := b.([]string)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case map[string]string:
		bv, ok := b.(map[string]string)
		if !ok || len(av) != len(bv) {
			return false
		}
		for key, item := range av {
			if bv[key] != item {
				return false
			}
		}
		return true
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case FileMeta:
		bv, ok := b.(FileMeta)
		return ok && av == bv
	default:
		return a == b
	}
}
