package output

import (
	"encoding/json"
	"fmt"
)

// JSON renders any report value as indented JSON
func JSON(value any) (string, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return string(data), nil
}
