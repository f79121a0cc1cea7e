/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"strings"
)

// Category is one of the four fixed question topics.
type Category string

const (
	CategoryClub     Category = "club"
	CategoryFoot     Category = "foot"
	CategoryCulture  Category = "culture_locale"
	CategoryBeginner Category = "enfants"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryBeginner,
	CategoryCulture,
	CategoryFoot,
	CategoryClub,
}

// CategoryInfo holds display metadata for a category.
type CategoryInfo struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

var categoryInfo = map[Category]CategoryInfo{
	CategoryBeginner: {Label: "DÉBUTANT", Color: "#22d3ee"},
	CategoryCulture:  {Label: "CULTURE LOCALE", Color: "#fbbf24"},
	CategoryFoot:     {Label: "CULTURE FOOT", Color: "#f472b6"},
	CategoryClub:     {Label: "CULTURE CLUB", Color: "#a3e635"},
}

// Info returns the display metadata for c, or a zero value for
// unknown categories.
func (c Category) Info() CategoryInfo {
	return categoryInfo[c]
}

func (c Category) Valid() bool {
	_, ok := categoryInfo[c]
	return ok
}

// ParseCategory matches s against the known categories,
// case-insensitively and ignoring surrounding whitespace.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q (expected one of: %s)", s, categoryList())
	}
	return c, nil
}

func categoryList() string {
	names := make([]string, 0, len(Categories))
	for _, c := range Categories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
