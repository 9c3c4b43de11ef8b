// Package auth issues and verifies API tokens for agents and admins.
//
// Agent tokens have the form cd_<lookup>_<secret>. The lookup segment is
// stored in an indexed column and is not secret; the stored digest covers
// the whole token. Authentication is a single indexed row fetch followed
// by one constant-time digest comparison, never a scan over agents.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/crewdeck/crewdeck/internal/models"
	"gorm.io/gorm"
)

// ErrInvalidToken reports a token that matches no agent.
var ErrInvalidToken = errors.New("auth: invalid token")

const (
	tokenPrefix = "cd"
	lookupBytes = 6
	secretBytes = 24
)

// GenerateToken mints a new agent token. The token itself is only returned
// here; callers persist the lookup key and digest.
func GenerateToken() (token, lookup, digest string, err error) {
	lb := make([]byte, lookupBytes)
	if _, err = rand.Read(lb); err != nil {
		return "", "", "", fmt.Errorf("auth: generate lookup: %w", err)
	}
	sb := make([]byte, secretBytes)
	if _, err = rand.Read(sb); err != nil {
		return "", "", "", fmt.Errorf("auth: generate secret: %w", err)
	}
	lookup = hex.EncodeToString(lb)
	token = tokenPrefix + "_" + lookup + "_" + hex.EncodeToString(sb)
	return token, lookup, Digest(token), nil
}

// Digest returns the hex SHA-256 of a token.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// LookupKey extracts the indexed lookup segment from a token. ok is false
// for tokens that do not have the expected shape.
func LookupKey(token string) (string, bool) {
	parts := strings.Split(token, "_")
	if len(parts) != 3 || parts[0] != tokenPrefix || parts[1] == "" || parts[2] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthenticateAgent resolves a token to its agent via the lookup-key index
// and exactly one digest comparison.
func AuthenticateAgent(db *gorm.DB, token string) (*models.Agent, error) {
	lookup, ok := LookupKey(token)
	if !ok {
		return nil, ErrInvalidToken
	}
	var agent models.Agent
	err := db.Where("token_lookup = ?", lookup).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("auth: lookup agent: %w", err)
	}
	if !equalDigest(agent.TokenDigest, Digest(token)) {
		return nil, ErrInvalidToken
	}
	return &agent, nil
}

// VerifyAdminToken compares a presented token against the configured admin
// token in constant time.
func VerifyAdminToken(configured, presented string) bool {
	if configured == "" || presented == "" {
		return false
	}
	return equalDigest(Digest(configured), Digest(presented))
}

// equalDigest compares two equal-length hex digests in constant time.
func equalDigest(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
