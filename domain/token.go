package domain

import (
	"strings"

	"github.com/google/uuid"
)

// TokenCarrier is the canonical way for an access-token entity to expose the
// token value that keys it.
type TokenCarrier interface {
	TokenValue() string
}

// BaseAccessToken is the bearer-token record schema. The token value is the
// partition key; user_id is a non-enforced foreign key to a user record.
type BaseAccessToken struct {
	Token     string    `dynamodbav:"token" json:"token"`
	UserID    GUID      `dynamodbav:"user_id" json:"user_id"`
	CreatedAt Timestamp `dynamodbav:"created_at" json:"created_at"`
}

// TokenValue returns the token string.
func (t BaseAccessToken) TokenValue() string {
	return t.Token
}

// GenerateTokenValue returns a random 32-character hex token value, used when
// a create call supplies no explicit token.
func GenerateTokenValue() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
