package models

import "fmt"

// Setting keys as stored in the settings table.
const (
	SettingOwner  = "owner"
	SettingAccess = "access"
)

// Visibility is the public/private flag of the whole moments list.
type Visibility bool

const (
	Public  Visibility = false
	Private Visibility = true
)

// String returns the wire literal, "private" or "public".
func (v Visibility) String() string {
	if v == Private {
		return "private"
	}
	return "public"
}

// ParseVisibility converts a wire literal into a Visibility.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "private":
		return Private, nil
	case "public":
		return Public, nil
	default:
		return Public, fmt.Errorf("unknown visibility %q", s)
	}
}
