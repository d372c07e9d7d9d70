package authkit

import (
	"errors"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stagepage/authkit/jwt"
	"github.com/stagepage/authkit/password"
	"github.com/stagepage/authkit/session"
)

// Builder assembles an Engine. Configure it during initialization and call
// Build exactly once.
type Builder struct {
	config       Config
	redis        redis.UniversalClient
	userStore    UserStore
	sessionStore session.Store
	mailer       Mailer
	log          *logrus.Logger

	built bool
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the full configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing refresh records, two-factor
// challenges, and alert deduplication.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the account persistence backend.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.userStore = store
	return b
}

// WithSessionStore sets the session persistence backend.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessionStore = store
	return b
}

// WithMailer sets the outbound mail collaborator.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithLogger sets the structured logger. Omitted, the engine logs nowhere.
func (b *Builder) WithLogger(log *logrus.Logger) *Builder {
	b.log = log
	return b
}

// Build validates the configuration and wiring and returns the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userStore == nil {
		return nil, errors.New("user store required")
	}
	if b.sessionStore == nil {
		return nil, errors.New("session store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(b.config.Password)
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(b.config.JWT)
	if err != nil {
		return nil, err
	}

	log := b.log
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	engine := &Engine{
		config:       b.config,
		userStore:    b.userStore,
		sessionStore: b.sessionStore,
		refreshStore: newRefreshTokenStore(b.redis),
		twoFactor:    newTwoFactorStore(b.redis),
		alerts:       newSecurityAlertLimiter(b.redis, b.config.Alert),
		hasher:       hasher,
		jwtManager:   jm,
		mailer:       b.mailer,
		log:          log,
	}

	b.built = true
	return engine, nil
}
