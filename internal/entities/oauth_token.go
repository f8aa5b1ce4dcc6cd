package entities

import (
	"time"
)

// OAuthProvider names a cloud account the backup feature can sign in to.
type OAuthProvider string

const (
	OAuthProviderDropbox OAuthProvider = "dropbox"
	OAuthProviderGoogle  OAuthProvider = "google"
)

// OAuthToken is the persisted, encrypted form of a provider token.
// AccessToken and RefreshToken hold base64 XChaCha20-Poly1305 ciphertext.
type OAuthToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Provider  OAuthProvider `gorm:"type:varchar(50);not null;uniqueIndex:idx_provider_account" json:"provider"`
	AccountID string        `gorm:"type:varchar(255);not null;uniqueIndex:idx_provider_account" json:"account_id"`

	AccessToken  string     `gorm:"type:text;not null" json:"-"`
	RefreshToken string     `gorm:"type:text" json:"-"`
	TokenType    string     `gorm:"type:varchar(50);default:Bearer" json:"token_type"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scope        string     `gorm:"type:text" json:"scope,omitempty"`

	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`
}

func (OAuthToken) TableName() string {
	return "oauth_tokens"
}

// IsExpiringSoon checks if the token expires within the given duration
func (t *OAuthToken) IsExpiringSoon(within time.Duration) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return time.Now().Add(within).After(*t.ExpiresAt)
}

// DecryptedToken holds plaintext token values in memory only.
type DecryptedToken struct {
	Provider     OAuthProvider
	AccountID    string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    *time.Time
	Scope        string
}
