// Package domain holds the entity schemas the DynamoDB stores persist and the
// typed field codecs that map them onto string-keyed items. Callers embed the
// base types into their own structs and add extra fields with dynamodbav tags.
package domain

// Identifiable is the canonical way for an entity to expose its partition-key
// value. Types embedding BaseUser or OAuthAccount get it for free.
type Identifiable interface {
	EntityID() string
}

// BaseUser is the identity record schema. Emails are case-folded to lowercase
// before storage, so lookups are case-insensitive by construction. Email
// uniqueness is a caller convention; the store does not enforce it.
type BaseUser struct {
	ID             GUID   `dynamodbav:"id" json:"id"`
	Email          string `dynamodbav:"email" json:"email"`
	HashedPassword string `dynamodbav:"hashed_password" json:"hashed_password"`
	IsActive       bool   `dynamodbav:"is_active" json:"is_active"`
	IsSuperuser    bool   `dynamodbav:"is_superuser" json:"is_superuser"`
	IsVerified     bool   `dynamodbav:"is_verified" json:"is_verified"`
}

// EntityID returns the string form of the user's id.
func (u BaseUser) EntityID() string {
	return u.ID.String()
}

// OAuthAccount is a linked external-identity record, associated to a user by
// the user_id foreign key. The pair (oauth_name, account_id) identifies the
// account at the provider; its uniqueness is not enforced by storage.
type OAuthAccount struct {
	ID           GUID    `dynamodbav:"id" json:"id"`
	UserID       GUID    `dynamodbav:"user_id" json:"user_id"`
	OAuthName    string  `dynamodbav:"oauth_name" json:"oauth_name"`
	AccessToken  string  `dynamodbav:"access_token" json:"access_token"`
	RefreshToken *string `dynamodbav:"refresh_token,omitempty" json:"refresh_token,omitempty"`
	ExpiresAt    *int64  `dynamodbav:"expires_at,omitempty" json:"expires_at,omitempty"`
	AccountID    string  `dynamodbav:"account_id" json:"account_id"`
	AccountEmail string  `dynamodbav:"account_email" json:"account_email"`
}

// EntityID returns the string form of the account's id.
func (a OAuthAccount) EntityID() string {
	return a.ID.String()
}

// OAuthAccountAppender lets a user type receive the convenience projection of
// a freshly linked OAuth account. The appended value mirrors what was written,
// not a guarantee about what a subsequent read will observe: the underlying
// store is eventually consistent.
type OAuthAccountAppender interface {
	AppendOAuthAccount(account OAuthAccount)
}
