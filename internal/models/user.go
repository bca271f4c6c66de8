package models

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

var (
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrNoCredential     = errors.New("user needs exactly one of password or googleId")
)

// UserDoc is the document stored in the users collection.
type UserDoc struct {
	ID                     primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name                   string             `json:"name" bson:"name"`
	Email                  string             `json:"email" bson:"email"`
	GoogleID               *string            `json:"googleId" bson:"googleId,omitempty"`
	PasswordHash           string             `json:"-" bson:"password,omitempty"`
	RefreshToken           *string            `json:"-" bson:"refreshToken"`
	CreatedAt              time.Time          `json:"createdAt" bson:"createdAt"`
	PlaylistsUploadedCount int                `json:"playlistsUploadedCount" bson:"playlistsUploadedCount"`
}

// NormalizeEmail applies the same lowercase/trim rule used by the unique index.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetPassword hashes plain and stores the hash. Callers only invoke it when the
// password is being set or changed, so a stored hash is never hashed again.
func (u *UserDoc) SetPassword(plain string) error {
	if len(plain) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *UserDoc) PasswordMatches(plain string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// Validate checks that exactly one credential kind is present.
func (u *UserDoc) Validate() error {
	hasPassword := u.PasswordHash != ""
	hasGoogle := u.GoogleID != nil && *u.GoogleID != ""
	if hasPassword == hasGoogle {
		return ErrNoCredential
	}
	return nil
}

// Public returns a copy without secrets, safe to attach to a request context.
func (u *UserDoc) Public() *UserDoc {
	c := *u
	c.PasswordHash = ""
	c.RefreshToken = nil
	return &c
}
