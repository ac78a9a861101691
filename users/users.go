package users

import (
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password the exchange accepts at registration.
const MinPasswordLength = 6

// User is the profile returned by the exchange API.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func (u *User) String() string {
	if u == nil {
		return "<anonymous>"
	}
	return fmt.Sprintf("%s (id %d)", u.Email, u.ID)
}

// Credentials is the body of the login and register calls.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ValidateEmail checks that email is a single bare address.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidatePasswordStrength checks the registration rules:
// - required
// - at least MinPasswordLength characters
func ValidatePasswordStrength(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len([]rune(password)) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// Validate checks the credentials before a register call.
func (c Credentials) Validate() error {
	if err := ValidateEmail(c.Email); err != nil {
		return err
	}
	return ValidatePasswordStrength(c.Password)
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
