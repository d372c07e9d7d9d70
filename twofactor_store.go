package authkit

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stagepage/authkit/internal"
	"github.com/stagepage/authkit/tenant"
)

const (
	twoFactorKeyPrefix      = "2fa"
	twoFactorRecordVersion1 = 1
)

// twoFactorChallenge is the pending email-code state for one user. Only the
// code digest is stored.
type twoFactorChallenge struct {
	CodeHash  [32]byte
	ExpiresAt int64
}

type twoFactorStore struct {
	redis redis.UniversalClient
}

func newTwoFactorStore(redisClient redis.UniversalClient) *twoFactorStore {
	return &twoFactorStore{redis: redisClient}
}

func (s *twoFactorStore) key(scope tenant.ID, userID string) string {
	return twoFactorKeyPrefix + ":" + string(scope) + ":" + userID
}

// Save stores a fresh challenge, replacing any pending one. At most one
// challenge per user is live at a time.
func (s *twoFactorStore) Save(ctx context.Context, scope tenant.ID, userID, code string, ttl time.Duration) error {
	record := &twoFactorChallenge{
		CodeHash:  internal.HashToken(code),
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}
	encoded, err := encodeTwoFactorChallenge(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(scope, userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Exists reports whether a challenge is pending for the user.
func (s *twoFactorStore) Exists(ctx context.Context, scope tenant.ID, userID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(scope, userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// Consume verifies the code against the pending challenge and deletes it on
// success so each code is single-use. Wrong codes leave the challenge in
// place until it expires.
func (s *twoFactorStore) Consume(ctx context.Context, scope tenant.ID, userID, code string) error {
	key := s.key(scope, userID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrTwoFactorNotPending
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	record, err := decodeTwoFactorChallenge(data)
	if err != nil {
		return err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, key).Result()
		return ErrTwoFactorExpired
	}

	given := internal.HashToken(code)
	if subtle.ConstantTimeCompare(given[:], record.CodeHash[:]) != 1 {
		return ErrTwoFactorInvalid
	}

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func encodeTwoFactorChallenge(record *twoFactorChallenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(twoFactorRecordVersion1)
	buf.Write(record.CodeHash[:])
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeTwoFactorChallenge(data []byte) (*twoFactorChallenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != twoFactorRecordVersion1 {
		return nil, errors.New("invalid two-factor challenge version")
	}

	record := &twoFactorChallenge{}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	return record, nil
}
