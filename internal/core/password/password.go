package password

import (
	"fmt"
	"strings"
	"unicode"

	errors "github.com/frahmantamala/thesis-repository/internal"
	"github.com/frahmantamala/thesis-repository/internal/core/common/validation"
	"golang.org/x/crypto/bcrypt"
)

// MaxBytes is the longest input bcrypt accepts.
const MaxBytes = 72

// SpecialCharacters is the set a password must draw at least one character from.
const SpecialCharacters = `!@#$%^&*()_+-=[]{}|;:,.<>?`

type Config struct {
	HistoryLimit int
	ExpiryDays   int
	MinLength    int
	BCryptCost   int
}

func DefaultConfig() Config {
	return Config{
		HistoryLimit: 5,
		ExpiryDays:   30,
		MinLength:    8,
		BCryptCost:   bcrypt.DefaultCost,
	}
}

// Policy validates new passwords and hashes accepted ones.
type Policy struct {
	cfg Config
}

func NewPolicy(cfg Config) *Policy {
	def := DefaultConfig()
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.ExpiryDays <= 0 {
		cfg.ExpiryDays = def.ExpiryDays
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = def.MinLength
	}
	if cfg.BCryptCost < bcrypt.MinCost || cfg.BCryptCost > bcrypt.MaxCost {
		cfg.BCryptCost = def.BCryptCost
	}
	return &Policy{cfg: cfg}
}

func (p *Policy) HistoryLimit() int { return p.cfg.HistoryLimit }

// Candidate is a proposed password together with the identity it belongs to.
type Candidate struct {
	Username     string
	Email        string
	Password     string
	Confirmation string
}

// Change is a password replacement for an existing account.
type Change struct {
	Candidate
	// CurrentPassword is empty when an administrator resets someone else's password.
	CurrentPassword string
	CurrentHash     string
	// History holds prior hashes, newest first.
	History []string
}

// ValidateStrength checks composition, confirmation and personal data rules.
func (p *Policy) ValidateStrength(c Candidate) error {
	if appErr := p.strength(c).Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// ValidateChange applies the strength rules plus the reuse rules against the
// current password and the most recent history entries.
func (p *Policy) ValidateChange(ch Change) error {
	v := p.strength(ch.Candidate)

	sameAsCurrent := false
	if ch.CurrentPassword != "" {
		sameAsCurrent = ch.CurrentPassword == ch.Password
	} else if ch.CurrentHash != "" {
		sameAsCurrent = Verify(ch.CurrentHash, ch.Password)
	}
	v.Field("new_password", ch.Password).
		Must(!sameAsCurrent, "new password must differ from the current password", errors.ErrCodePasswordSame)

	if !sameAsCurrent {
		v.Field("new_password", ch.Password).
			Must(!p.InHistory(ch.Password, ch.History), "new password was used recently, choose a different one", errors.ErrCodePasswordReused)
	}

	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// InHistory reports whether pw matches one of the newest HistoryLimit hashes.
func (p *Policy) InHistory(pw string, history []string) bool {
	limit := p.cfg.HistoryLimit
	if len(history) < limit {
		limit = len(history)
	}
	for _, h := range history[:limit] {
		if Verify(h, pw) {
			return true
		}
	}
	return false
}

func (p *Policy) strength(c Candidate) *validation.ValidationBuilder {
	v := validation.NewValidator()
	pw := c.Password

	v.Field("new_password", pw).
		Required().
		MinLength(p.cfg.MinLength, errors.ErrCodePasswordTooShort)

	if pw == "" {
		return v
	}

	v.Field("new_password", pw).
		Must(len(pw) <= MaxBytes, fmt.Sprintf("password must be at most %d bytes", MaxBytes), errors.ErrCodePasswordTooLong)

	v.Field("password_confirmation", c.Confirmation).
		Must(pw == c.Confirmation, "password confirmation does not match", errors.ErrCodePasswordMismatch)

	lower := strings.ToLower(pw)
	if u := strings.ToLower(strings.TrimSpace(c.Username)); u != "" {
		v.Field("new_password", pw).
			Must(!strings.Contains(lower, u), "password must not contain the username", errors.ErrCodePasswordPersonal)
	}
	if local := emailLocalPart(c.Email); local != "" {
		v.Field("new_password", pw).
			Must(!strings.Contains(lower, local), "password must not contain the email address", errors.ErrCodePasswordPersonal)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	allDigits := true
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
		if strings.ContainsRune(SpecialCharacters, r) {
			hasSpecial = true
		}
		if !unicode.IsDigit(r) {
			allDigits = false
		}
	}

	v.Field("new_password", pw).
		Must(!allDigits, "password must not be entirely numeric", errors.ErrCodePasswordWeak).
		Must(hasUpper, "password must contain at least one uppercase letter", errors.ErrCodePasswordWeak).
		Must(hasLower, "password must contain at least one lowercase letter", errors.ErrCodePasswordWeak).
		Must(hasDigit, "password must contain at least one digit", errors.ErrCodePasswordWeak).
		Must(hasSpecial, fmt.Sprintf("password must contain at least one special character (%s)", SpecialCharacters), errors.ErrCodePasswordWeak)

	return v
}

func emailLocalPart(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// Hash creates a bcrypt hash with the policy's cost.
func (p *Policy) Hash(pw string) (string, error) {
	return Hash(pw, p.cfg.BCryptCost)
}

func Hash(pw string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func Verify(hashed, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw)) == nil
}
