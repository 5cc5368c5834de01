package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"

	"service-order-attachments/internal/app"
)

const (
	fieldServiceOrder = "service_order"
	fieldWorkcenter   = "workcenter"
	fieldFile         = "file"
	fieldHasPreview   = "has_preview"
	fieldResults      = "results"
)

// SessionStore keeps form state in one redis hash per session. Each action
// writes only its own hash fields, so concurrent actions in one session do
// not overwrite each other. The staged file bytes and the upload lock live
// in sibling keys.
type SessionStore struct {
	client  *redisv9.Client
	ttl     time.Duration
	lockTTL time.Duration
}

func NewSessionStore(client *redisv9.Client, ttl, lockTTL time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	return &SessionStore{client: client, ttl: ttl, lockTTL: lockTTL}
}

func (s *SessionStore) Load(ctx context.Context, sessionID string) (*app.SessionState, error) {
	values, err := s.client.HGetAll(ctx, s.stateKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load session failed: %w", err)
	}
	locked, err := s.client.Exists(ctx, s.lockKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis check upload lock failed: %w", err)
	}

	state := &app.SessionState{
		ServiceOrder: values[fieldServiceOrder],
		Workcenter:   values[fieldWorkcenter],
		HasPreview:   values[fieldHasPreview] == "1",
		Uploading:    locked > 0,
	}
	if raw := values[fieldFile]; raw != "" {
		var file app.SelectedFile
		if err := json.Unmarshal([]byte(raw), &file); err != nil {
			return nil, fmt.Errorf("unmarshal session file failed: %w", err)
		}
		state.File = &file
	}
	if raw := values[fieldResults]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &state.Results); err != nil {
			return nil, fmt.Errorf("unmarshal session results failed: %w", err)
		}
	}
	return state, nil
}

func (s *SessionStore) SaveFields(ctx context.Context, sessionID, serviceOrder, workcenter string) error {
	return s.setFields(ctx, sessionID, fieldServiceOrder, serviceOrder, fieldWorkcenter, workcenter)
}

// SaveSelection replaces the staged file and shows its preview.
func (s *SessionStore) SaveSelection(ctx context.Context, sessionID string, file app.SelectedFile, content []byte) error {
	payload, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal session file failed: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Set(ctx, s.contentKey(sessionID), content, s.ttl)
		pipe.HSet(ctx, s.stateKey(sessionID), fieldFile, payload, fieldHasPreview, "1")
		pipe.Expire(ctx, s.stateKey(sessionID), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save selection failed: %w", err)
	}
	return nil
}

// SelectionContent returns nil when nothing is staged or the bytes expired.
func (s *SessionStore) SelectionContent(ctx context.Context, sessionID string) ([]byte, error) {
	content, err := s.client.Get(ctx, s.contentKey(sessionID)).Bytes()
	if err == redisv9.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get selection failed: %w", err)
	}
	return content, nil
}

func (s *SessionStore) ClearPreview(ctx context.Context, sessionID string) error {
	return s.setFields(ctx, sessionID, fieldHasPreview, "0")
}

func (s *SessionStore) SaveResults(ctx context.Context, sessionID string, results []string) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal session results failed: %w", err)
	}
	return s.setFields(ctx, sessionID, fieldResults, string(payload))
}

// releaseLockScript deletes the lock only while it still holds the caller's
// token.
var releaseLockScript = redisv9.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireUploadLock expires on its own so a crashed request cannot leave
// the session busy forever.
func (s *SessionStore) AcquireUploadLock(ctx context.Context, sessionID string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.lockKey(sessionID), token, s.lockTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis acquire upload lock failed: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (s *SessionStore) ReleaseUploadLock(ctx context.Context, sessionID, token string) error {
	if err := releaseLockScript.Run(ctx, s.client, []string{s.lockKey(sessionID)}, token).Err(); err != nil {
		return fmt.Errorf("redis release upload lock failed: %w", err)
	}
	return nil
}

func (s *SessionStore) setFields(ctx context.Context, sessionID string, values ...any) error {
	key := s.stateKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.HSet(ctx, key, values...)
		pipe.Expire(ctx, key, s.ttl)
		// the staged bytes live as long as the state that points at them
		pipe.Expire(ctx, s.contentKey(sessionID), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save session failed: %w", err)
	}
	return nil
}

func (s *SessionStore) stateKey(sessionID string) string {
	return fmt.Sprintf("attachments:session:%s", sessionID)
}

func (s *SessionStore) contentKey(sessionID string) string {
	return fmt.Sprintf("attachments:session:%s:file", sessionID)
}

func (s *SessionStore) lockKey(sessionID string) string {
	return fmt.Sprintf("attachments:session:%s:uploading", sessionID)
}

var _ app.SessionStore = (*SessionStore)(nil)
