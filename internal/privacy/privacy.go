// Package privacy decides which contact and location fields of a member a
// given viewer may see.
package privacy

import (
	"strings"
	"unicode"

	"github.com/yukikurage/favor-exchange-api/internal/models"
)

// Relationship describes how the viewer is connected to the subject.
type Relationship int

const (
	// RelationshipNone means no coordination link exists.
	RelationshipNone Relationship = iota
	// RelationshipActiveAssignment means one of them claimed a request owned by
	// the other and the assignment is still active.
	RelationshipActiveAssignment
)

// Subject is the data owner as loaded from the store. Any field may be empty.
type Subject struct {
	UserID       uint64
	Email        string
	DisplayName  string
	Phone        string
	City         string
	Neighborhood string
	Privacy      models.PrivacySettings
}

// SubjectFromUser builds a Subject from a user and its profile. A nil user
// yields an empty subject, which resolves to the most restrictive view.
func SubjectFromUser(user *models.User) Subject {
	if user == nil {
		return Subject{}
	}
	return Subject{
		UserID:       user.ID,
		Email:        user.Email,
		DisplayName:  user.Profile.DisplayName,
		Phone:        user.Profile.Phone,
		City:         user.Profile.City,
		Neighborhood: user.Profile.Neighborhood,
		Privacy:      user.Profile.Privacy,
	}
}

// View is the redacted projection of a subject for one viewer.
type View struct {
	UserID       uint64  `json:"id"`
	DisplayName  string  `json:"display_name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	City         *string `json:"city"`
	ShowEmail    bool    `json:"show_email"`
	ShowPhone    bool    `json:"show_phone"`
	ShowLocation bool    `json:"show_location"`
}

// Resolve returns the view of subject that viewerID is allowed to see.
// It never mutates its input and never fails.
func Resolve(subject Subject, viewerID uint64, rel Relationship) View {
	view := View{
		UserID:      subject.UserID,
		DisplayName: subject.DisplayName,
	}

	exactCity := joinNonEmpty(subject.Neighborhood, subject.City)

	switch {
	case subject.UserID != 0 && viewerID == subject.UserID,
		subject.UserID != 0 && rel == RelationshipActiveAssignment:
		view.Email = optional(subject.Email)
		view.Phone = optional(subject.Phone)
		view.City = optional(exactCity)
		view.ShowEmail = view.Email != nil
		view.ShowPhone = view.Phone != nil
		view.ShowLocation = view.City != nil
		return view
	}

	flags := subject.Privacy
	if flags.ShowEmail {
		view.Email = optional(subject.Email)
		view.ShowEmail = view.Email != nil
	}
	if flags.ShowPhone {
		view.Phone = optional(subject.Phone)
		view.ShowPhone = view.Phone != nil
	}
	if flags.ShowExactLocation {
		view.City = optional(exactCity)
		view.ShowLocation = view.City != nil
	} else {
		view.City = optional(GeneralizeLocation(subject.City))
	}

	return view
}

// CanSeeExactLocation reports whether viewerID may see the precise address
// of a request owned by owner.
func CanSeeExactLocation(owner Subject, viewerID uint64, rel Relationship) bool {
	if owner.UserID == 0 {
		return false
	}
	if viewerID == owner.UserID || rel == RelationshipActiveAssignment {
		return true
	}
	return owner.Privacy.ShowExactLocation
}

var streetWords = map[string]struct{}{
	"street": {}, "st": {}, "avenue": {}, "ave": {}, "road": {}, "rd": {},
	"boulevard": {}, "blvd": {}, "lane": {}, "ln": {}, "drive": {}, "dr": {},
	"court": {}, "ct": {}, "place": {}, "pl": {}, "way": {}, "terrace": {},
	"apt": {}, "apartment": {}, "suite": {}, "ste": {}, "unit": {}, "floor": {},
	"highway": {}, "hwy": {}, "parkway": {}, "pkwy": {},
}

// GeneralizeLocation strips street-level parts of an address and returns the
// remaining city/region with an "area" suffix. It returns "" when nothing
// general enough is left.
func GeneralizeLocation(location string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		return ""
	}

	var kept []string
	for _, part := range strings.Split(location, ",") {
		if general := generalPart(part); general != "" {
			kept = append(kept, general)
		}
	}
	if len(kept) == 0 {
		return ""
	}

	label := strings.Join(kept, ", ")
	if strings.HasSuffix(strings.ToLower(label), " area") {
		return label
	}
	return label + " area"
}

func generalPart(part string) string {
	words := strings.Fields(part)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if strings.HasPrefix(w, "#") {
			return ""
		}
		if _, street := streetWords[strings.ToLower(strings.Trim(w, "."))]; street {
			return ""
		}
		if hasDigit(w) {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
