package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	challengeRecordVersion1 = 1
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrChallengeBackend  = errors.New("challenge backend unavailable")
)

// CeremonyKind distinguishes the two ceremony types a pending challenge can
// belong to.
type CeremonyKind uint8

const (
	KindRegistration CeremonyKind = 1
	KindLogin        CeremonyKind = 2
)

// PendingCeremony is the record stored per issued challenge. SessionData
// carries the verifier session serialized as JSON so the finish step can
// resume the exact ceremony state.
type PendingCeremony struct {
	Kind        CeremonyKind
	Username    string
	ExpiresAt   int64
	SessionData []byte
}

// ChallengeStore persists pending ceremonies in Redis, keyed by the
// challenge string. Consume is the only read path used during ceremony
// completion: it removes the record atomically so a challenge can never be
// redeemed twice.
type ChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewChallengeStore(redisClient redis.UniversalClient, prefix string) *ChallengeStore {
	if prefix == "" {
		prefix = "pkc"
	}
	return &ChallengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ChallengeStore) key(challenge string) string {
	return s.prefix + ":" + challenge
}

func (s *ChallengeStore) Save(
	ctx context.Context,
	challenge string,
	record *PendingCeremony,
	ttl time.Duration,
) error {
	encoded, err := encodePendingCeremony(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(challenge), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}

// Consume removes and returns the pending ceremony in a single GETDEL round
// trip. Concurrent consumers race on the delete; exactly one observes the
// record, the rest get ErrChallengeNotFound.
func (s *ChallengeStore) Consume(ctx context.Context, challenge string) (*PendingCeremony, error) {
	data, err := s.redis.GetDel(ctx, s.key(challenge)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}

	record, err := decodePendingCeremony(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrChallengeExpired
	}
	return record, nil
}

func (s *ChallengeStore) Delete(ctx context.Context, challenge string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(challenge)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return n > 0, nil
}

func encodePendingCeremony(record *PendingCeremony) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)
	buf.WriteByte(byte(record.Kind))

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Username) > 65535 || len(record.SessionData) > 65535 {
		return nil, errors.New("challenge record field length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Username))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Username)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.SessionData))); err != nil {
		return nil, err
	}
	buf.Write(record.SessionData)

	return buf.Bytes(), nil
}

func decodePendingCeremony(data []byte) (*PendingCeremony, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid challenge record version")
	}

	kind, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &PendingCeremony{Kind: CeremonyKind(kind)}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var nameLen uint16
	if err := binary.Read(reader, binary.BigEndian, &nameLen); err != nil {
		return nil, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(reader, name); err != nil {
		return nil, err
	}
	record.Username = string(name)

	var sessionLen uint16
	if err := binary.Read(reader, binary.BigEndian, &sessionLen); err != nil {
		return nil, err
	}
	session := make([]byte, sessionLen)
	if _, err := io.ReadFull(reader, session); err != nil {
		return nil, err
	}
	record.SessionData = session

	return record, nil
}
