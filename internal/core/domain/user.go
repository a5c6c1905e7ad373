package domain

import (
	"net/url"
	"time"
)

// Gender is the fixed set of genders a user can register with.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

const avatarBaseURL = "https://avatar.iran.liara.run/public/"

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// DefaultProfilePicture returns the generated avatar URL used when a user
// registers without a picture.
func DefaultProfilePicture(username string, g Gender) string {
	kind := "girl"
	if g == GenderMale {
		kind = "boy"
	}
	return avatarBaseURL + kind + "?username=" + url.QueryEscape(username)
}

// User models a registered person.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Name           string    `json:"name"`
	PasswordHash   string    `json:"-"`
	ProfilePicture string    `json:"profile_picture"`
	Gender         Gender    `json:"gender"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
