package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ChuLiYu/labqueue/pkg/types"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// ptrToNull keeps the difference between a missing and an empty field.
func ptrToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return types.Ptr(ns.String)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// tagsToNull stores a tag list as a JSON array; nil becomes NULL.
func tagsToNull(tags []string) (sql.NullString, error) {
	if tags == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal tags: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullToTags(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(ns.String), &tags); err != nil {
		return nil, types.Errorf(types.ErrCorruptedData, "tags column %q is not a JSON array", ns.String)
	}
	return tags, nil
}
