package core

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Mode identifies how the host front end authenticated the user.
type Mode string

const (
	ModeWallet Mode = "wallet"
	ModeEmail  Mode = "email"
)

// MaxUsernameLength is the longest username the service accepts on upload.
const MaxUsernameLength = 127

// DefaultExtra is sent when an upload carries no extra data. The service
// treats an empty extra field as missing, so a single space is used instead.
const DefaultExtra = " "

var (
	ErrEmptyKey             = errors.New("public key cannot be empty")
	ErrEmptyUsername        = errors.New("username cannot be empty")
	ErrUsernameTooLong      = errors.New("username cannot be longer than 127 characters")
	ErrNotAuthenticated     = errors.New("user not authenticated")
	ErrInvalidMode          = errors.New("invalid mode: expected 'wallet' or 'email'")
	ErrEmptyCredentials     = errors.New("credentials are empty")
	ErrCredentialFieldCount = errors.New("credentials must contain exactly 3 comma-separated fields")
	ErrEmptyCredentialField = errors.New("credential username and token cannot be empty")
)

// ParseMode validates a raw mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeWallet, ModeEmail:
		return Mode(s), nil
	}
	return "", ErrInvalidMode
}

// Credentials is the typed form of the bundle delivered by the host front end.
type Credentials struct {
	Username string `json:"username"`
	Mode     Mode   `json:"mode"`
	Token    string `json:"token"`
}

// ParseCredentials parses the inbound "username,mode,token" message.
// Every part is trimmed before validation.
func ParseCredentials(raw string) (Credentials, error) {
	if raw == "" {
		return Credentials{}, ErrEmptyCredentials
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return Credentials{}, ErrCredentialFieldCount
	}
	return NewCredentials(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]))
}

// NewCredentials validates discrete credential fields.
func NewCredentials(username, mode, token string) (Credentials, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return Credentials{}, err
	}
	if username == "" || token == "" {
		return Credentials{}, ErrEmptyCredentialField
	}
	return Credentials{Username: username, Mode: m, Token: token}, nil
}

// ValidateKey rejects empty leaderboard keys.
func ValidateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}

// ValidateUsername enforces the upload username rules. Length is counted in
// characters, not bytes.
func ValidateUsername(username string) error {
	if username == "" {
		return ErrEmptyUsername
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	return nil
}

// Entry is one leaderboard row as returned by the service.
type Entry struct {
	Username string `json:"Username"`
	Score    int    `json:"Score"`
	Date     uint64 `json:"Date"`
	Extra    string `json:"Extra"`
	Rank     int    `json:"Rank"`
	UserGuid string `json:"UserGuid"`
}

// EntryPayload is the upload request body. Score travels as a string.
type EntryPayload struct {
	PublicKey string `json:"publicKey"`
	Username  string `json:"username"`
	Score     string `json:"score"`
	Extra     string `json:"extra"`
	UserGuid  string `json:"userGuid"`
}

// NewEntryPayload builds an upload payload; empty extra becomes DefaultExtra.
func NewEntryPayload(key, username string, score int, extra, userGuid string) EntryPayload {
	if extra == "" {
		extra = DefaultExtra
	}
	return EntryPayload{
		PublicKey: key,
		Username:  username,
		Score:     strconv.Itoa(score),
		Extra:     extra,
		UserGuid:  userGuid,
	}
}
