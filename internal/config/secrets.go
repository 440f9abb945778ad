// Package config provides environment-driven configuration and startup
// secret validation for jstsdebug.
//
// The only secret this service holds is the JWT signing key used to
// authenticate MCP WebSocket clients (spec component G); validation here
// exists to catch a misconfigured or placeholder key before the server
// starts accepting connections.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
)

const (
	EnvProduction  = "production"
	EnvStaging     = "staging"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

const (
	MinJWTSecretLength = 32
	minShannonEntropy  = 3.0
)

// SecretsValidationError reports which checks failed.
type SecretsValidationError struct {
	Missing  []string
	Invalid  []string
	Warnings []string
}

func (e *SecretsValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing secrets: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid secrets: %s", strings.Join(e.Invalid, ", ")))
	}
	return strings.Join(parts, "; ")
}

func (e *SecretsValidationError) HasErrors() bool {
	return len(e.Missing) > 0 || len(e.Invalid) > 0
}

// ValidateJWTSecret validates JSTSDEBUG_JWT_SECRET and returns it. In
// production a missing or weak secret is a fatal error; outside
// production the check degrades to warnings so local development isn't
// blocked on generating a real key.
func ValidateJWTSecret() (string, error) {
	secret := os.Getenv("JSTSDEBUG_JWT_SECRET")
	isProduction := IsProductionEnvironment()

	validationErr := &SecretsValidationError{}

	if secret == "" {
		if isProduction {
			return "", errors.New("FATAL: JSTSDEBUG_JWT_SECRET is required in production - authentication will not work")
		}
		log.Println("WARNING: JSTSDEBUG_JWT_SECRET not set - sessions are unauthenticated (NOT SECURE FOR PRODUCTION)")
		return "", nil
	}

	if len(secret) < MinJWTSecretLength {
		msg := fmt.Sprintf("JSTSDEBUG_JWT_SECRET: too short (min %d characters)", MinJWTSecretLength)
		if isProduction {
			validationErr.Invalid = append(validationErr.Invalid, msg)
		} else {
			validationErr.Warnings = append(validationErr.Warnings, msg)
		}
	}

	if err := validateJWTSecretStrength(secret); err != nil {
		msg := fmt.Sprintf("JSTSDEBUG_JWT_SECRET: %s", err.Error())
		if isProduction {
			validationErr.Invalid = append(validationErr.Invalid, msg)
		} else {
			validationErr.Warnings = append(validationErr.Warnings, msg)
		}
	}

	for _, w := range validationErr.Warnings {
		log.Printf("WARNING: %s", w)
	}
	if isProduction && validationErr.HasErrors() {
		return "", validationErr
	}

	return secret, nil
}

// GetEnvironment returns the current deployment environment.
func GetEnvironment() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = os.Getenv("ENV")
	}
	if env == "" {
		env = EnvDevelopment
	}
	return strings.ToLower(env)
}

func IsProductionEnvironment() bool {
	env := GetEnvironment()
	return env == EnvProduction || env == "prod"
}

func IsStagingEnvironment() bool {
	env := GetEnvironment()
	return env == EnvStaging || env == "stage"
}

// validateJWTSecretStrength rejects placeholder values and low-entropy
// secrets, the same class of mistake a copy-pasted example key makes.
func validateJWTSecretStrength(secret string) error {
	weakSecrets := []string{
		"secret", "jwt-secret", "jwt_secret", "your-secret", "changeme",
		"password", "test", "dev", "development", "example", "default",
		"placeholder", "replace-me", "todo", "fixme", "jstsdebug-secret",
	}
	lower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if lower == weak || strings.Contains(lower, weak) {
			return fmt.Errorf("contains weak/placeholder value %q", weak)
		}
	}

	allAlpha, allDigit := true, true
	for _, c := range secret {
		if !unicode.IsLetter(c) {
			allAlpha = false
		}
		if !unicode.IsDigit(c) {
			allDigit = false
		}
	}
	if allAlpha {
		return errors.New("must contain non-alphabetic characters for sufficient entropy")
	}
	if allDigit {
		return errors.New("must contain non-numeric characters for sufficient entropy")
	}

	if entropy := shannonEntropy(secret); entropy < minShannonEntropy {
		return fmt.Errorf("entropy too low (%.1f bits/char, need >= %.1f)", entropy, minShannonEntropy)
	}

	if hasRepeatingPattern(secret) {
		return errors.New("appears to contain a repeating pattern")
	}

	return nil
}

// shannonEntropy calculates Shannon entropy in bits per character.
func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	freq := make(map[rune]float64)
	for _, c := range s {
		freq[c]++
	}
	length := float64(len([]rune(s)))
	entropy := 0.0
	for _, count := range freq {
		p := count / length
		if p > 0 {
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

// hasRepeatingPattern detects simple repeating patterns (e.g. "abcabc").
func hasRepeatingPattern(s string) bool {
	n := len(s)
	if n < 6 {
		return false
	}
	for patLen := 1; patLen <= n/2; patLen++ {
		pattern := s[:patLen]
		isRepeat := true
		for i := patLen; i < n; i++ {
			if s[i] != pattern[i%patLen] {
				isRepeat = false
				break
			}
		}
		if isRepeat {
			return true
		}
	}
	return false
}

// GenerateSecureSecret generates a cryptographically secure random secret,
// suitable for seeding JSTSDEBUG_JWT_SECRET in a new deployment.
func GenerateSecureSecret(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// JWTRotationValidator validates bearer tokens against a current signing
// key and, during a rotation window, a recently-retired one.
type JWTRotationValidator struct {
	currentSecret []byte
	oldSecret     []byte
}

func NewJWTRotationValidator(currentSecret, oldSecret string) *JWTRotationValidator {
	v := &JWTRotationValidator{currentSecret: []byte(currentSecret)}
	if oldSecret != "" {
		v.oldSecret = []byte(oldSecret)
	}
	return v
}

// ValidateToken validates a JWT, trying the current key first, then the
// old key if one is configured.
func (v *JWTRotationValidator) ValidateToken(tokenString string, claims jwt.Claims) (*jwt.Token, error) {
	keyFunc := func(key []byte) jwt.Keyfunc {
		return func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		}
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc(v.currentSecret))
	if err == nil && token.Valid {
		return token, nil
	}

	if v.oldSecret != nil {
		token, err = jwt.ParseWithClaims(tokenString, claims, keyFunc(v.oldSecret))
		if err == nil && token.Valid {
			log.Println("WARNING: token validated with retired JWT secret - client should re-authenticate soon")
			return token, nil
		}
	}

	return nil, fmt.Errorf("token validation failed: %w", err)
}

// MustValidateJWTSecret calls ValidateJWTSecret and exits the process if
// it fails. This is the recommended startup call.
func MustValidateJWTSecret() string {
	secret, err := ValidateJWTSecret()
	if err != nil {
		log.Fatalf("FATAL: cannot start server - %v", err)
	}
	return secret
}
