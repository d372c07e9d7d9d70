package authkit

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stagepage/authkit/tenant"
)

const (
	refreshKeyPrefix      = "rt"
	refreshRecordVersion1 = 1
)

var errRefreshRecordNotFound = errors.New("refresh record not found")

// refreshRecord is the server-side state of one refresh token. The token
// itself is stored only as a digest; IP and UserAgent bind the token to the
// device it was issued to.
type refreshRecord struct {
	TokenHash [32]byte
	UserID    string
	IP        string
	UserAgent string
}

type refreshTokenStore struct {
	redis redis.UniversalClient
}

func newRefreshTokenStore(redisClient redis.UniversalClient) *refreshTokenStore {
	return &refreshTokenStore{redis: redisClient}
}

func (s *refreshTokenStore) key(scope tenant.ID, sessionID string) string {
	return refreshKeyPrefix + ":" + string(scope) + ":" + sessionID
}

func (s *refreshTokenStore) Save(
	ctx context.Context,
	scope tenant.ID,
	sessionID string,
	record *refreshRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeRefreshRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(scope, sessionID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *refreshTokenStore) Get(ctx context.Context, scope tenant.ID, sessionID string) (*refreshRecord, error) {
	data, err := s.redis.Get(ctx, s.key(scope, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errRefreshRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decodeRefreshRecord(data)
}

func (s *refreshTokenStore) Delete(ctx context.Context, scope tenant.ID, sessionID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(scope, sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// DeleteMany removes the refresh records of several sessions in one round
// trip. Used by the kill switch after a reuse or device-mismatch detection.
func (s *refreshTokenStore) DeleteMany(ctx context.Context, scope tenant.ID, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	keys := make([]string, len(sessionIDs))
	for i, id := range sessionIDs {
		keys[i] = s.key(scope, id)
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func encodeRefreshRecord(record *refreshRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(refreshRecordVersion1)
	buf.Write(record.TokenHash[:])

	for _, field := range []string{record.UserID, record.IP, record.UserAgent} {
		if len(field) > 65535 {
			return nil, errors.New("refresh record field length exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeRefreshRecord(data []byte) (*refreshRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != refreshRecordVersion1 {
		return nil, errors.New("invalid refresh record version")
	}

	record := &refreshRecord{}
	if _, err := io.ReadFull(reader, record.TokenHash[:]); err != nil {
		return nil, err
	}

	for _, field := range []*string{&record.UserID, &record.IP, &record.UserAgent} {
		var length uint16
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	return record, nil
}
