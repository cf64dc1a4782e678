package dynamodb

import "go.uber.org/zap"

// storeOptions collects the optional knobs shared by both stores.
type storeOptions struct {
	logger          *zap.Logger
	metrics         *Metrics
	consistentReads bool
	oauthTable      string
	tokenPrimaryKey string
}

// Option configures a store at construction time.
type Option func(*storeOptions)

func defaultStoreOptions() storeOptions {
	return storeOptions{
		logger:          zap.NewNop(),
		tokenPrimaryKey: attrToken,
	}
}

// WithLogger attaches a structured logger to the store.
func WithLogger(logger *zap.Logger) Option {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics attaches an operation metrics collector to the store.
func WithMetrics(metrics *Metrics) Option {
	return func(o *storeOptions) {
		o.metrics = metrics
	}
}

// WithConsistentReads makes the store's point reads strongly consistent, so
// that an operation observes its own prior write. The default mirrors the
// underlying service: eventually consistent.
func WithConsistentReads(consistent bool) Option {
	return func(o *storeOptions) {
		o.consistentReads = consistent
	}
}

// WithOAuthTable enables the OAuth-account operations of a user store,
// backed by the named table. Without it those operations fail with a
// not-configured error.
func WithOAuthTable(tableName string) Option {
	return func(o *storeOptions) {
		o.oauthTable = tableName
	}
}

// WithTokenPrimaryKey overrides the partition-key attribute name of the
// access token table. Defaults to "token".
func WithTokenPrimaryKey(name string) Option {
	return func(o *storeOptions) {
		if name != "" {
			o.tokenPrimaryKey = name
		}
	}
}
