package authcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/solidcore-labs/authcore/email"
	"github.com/solidcore-labs/authcore/password"
	"github.com/solidcore-labs/authcore/storage"
	"github.com/solidcore-labs/authcore/token"
)

// Builder assembles an [Engine] from explicit dependencies. There is no
// hidden global state: the storage adapter, email sender, and limiter are
// constructed by the caller and injected here, making the Engine's behavior
// adapter-independent and fully testable.
type Builder struct {
	config      Config
	adapter     storage.Adapter
	emailSender email.Sender
	rateLimiter RateLimiter
	auditSink   AuditSink
	logger      *slog.Logger

	built bool
}

// New returns a builder preloaded with the package defaults. A signing secret
// and a storage adapter must still be provided before Build.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSecret sets the JWT signing secret without replacing the rest of the
// configuration.
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.config.JWT.Secret = append([]byte(nil), secret...)
	return b
}

// WithAdapter sets the identity-storage backend. Required.
func (b *Builder) WithAdapter(adapter storage.Adapter) *Builder {
	b.adapter = adapter
	return b
}

// WithEmailSender sets the outbound-email collaborator. Without one, reset and
// verification flows still succeed but no mail leaves the process.
func (b *Builder) WithEmailSender(sender email.Sender) *Builder {
	b.emailSender = sender
	return b
}

// WithRateLimiter sets the admission-control collaborator. Nil disables
// limiting.
func (b *Builder) WithRateLimiter(limiter RateLimiter) *Builder {
	b.rateLimiter = limiter
	return b
}

// WithAuditSink sets the audit event receiver. Events flow only when
// [AuditConfig].Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for background failures (audit overflow, hash
// upgrade errors). Defaults to [slog.Default].
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and wires the Engine. A builder can build
// at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.adapter == nil {
		return nil, errors.New("storage adapter is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      b.config.Password.Memory,
		Time:        b.config.Password.Time,
		Parallelism: b.config.Password.Parallelism,
		SaltLength:  b.config.Password.SaltLength,
		KeyLength:   b.config.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewService(token.Config{
		Secret:     b.config.JWT.Secret,
		Issuer:     b.config.JWT.Issuer,
		AccessTTL:  b.config.JWT.AccessTTL,
		RefreshTTL: b.config.JWT.RefreshTTL,
		PurposeTTL: b.config.JWT.PurposeTTL,
		Leeway:     b.config.JWT.Leeway,
	}, &adapterTokenStore{adapter: b.adapter})
	if err != nil {
		return nil, err
	}

	// fixed-cost comparison target so login timing does not reveal whether
	// the email exists
	dummyHash, err := hasher.Hash("authcore.dummy.comparison.target")
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:    b.config,
		adapter:   b.adapter,
		hasher:    hasher,
		policy:    password.NewPolicy(b.config.Password.Policy),
		tokens:    tokens,
		limiter:   b.rateLimiter,
		sender:    b.emailSender,
		audit:     newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:   &engineMetrics{},
		logger:    logger,
		dummyHash: dummyHash,
	}

	b.built = true
	return engine, nil
}

// adapterTokenStore narrows a [storage.Adapter] to the token service's view:
// the invalidation registry plus the user's current token version.
type adapterTokenStore struct {
	adapter storage.Adapter
}

func (s *adapterTokenStore) InvalidateToken(ctx context.Context, tok string, expiresAt time.Time) (bool, error) {
	return s.adapter.InvalidateToken(ctx, tok, expiresAt)
}

func (s *adapterTokenStore) IsTokenInvalidated(ctx context.Context, tok string) (bool, error) {
	return s.adapter.IsTokenInvalidated(ctx, tok)
}

func (s *adapterTokenStore) TokenVersion(ctx context.Context, userID string) (uint32, error) {
	user, err := s.adapter.GetUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.TokenVersion, nil
}
