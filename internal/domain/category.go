package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is the purpose of a completed mission.
type Category string

const (
	CategoryWork    Category = "work"
	CategoryLeisure Category = "leisure"
	CategoryTransit Category = "transit"
)

// legacyCategories maps the values stored by the Portuguese UI.
var legacyCategories = map[string]Category{
	"trabalho": CategoryWork,
	"lazer":    CategoryLeisure,
	"passagem": CategoryTransit,
}

// ParseCategory accepts a canonical or legacy category name, case-insensitively.
// An empty string means CategoryWork, the form's default.
func ParseCategory(s string) (Category, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch Category(v) {
	case "":
		return CategoryWork, nil
	case CategoryWork, CategoryLeisure, CategoryTransit:
		return Category(v), nil
	}
	if c, ok := legacyCategories[v]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrValidation, s)
}

// UnmarshalJSON normalizes legacy and empty values on the way in.
func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
