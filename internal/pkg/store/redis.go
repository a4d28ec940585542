package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/persistence"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "dryrun:"

// Redis keeps sessions and interviews in redis, keys expire together with the session
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedis creates the store from redis url, e.g. redis://localhost:6379/0
func NewRedis(url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("can't parse redis url: %w", err)
	}
	goapp.Log.Info().Str("addr", opt.Addr).Int("db", opt.DB).Msg("Init redis store")
	return NewRedisWithClient(redis.NewClient(opt)), nil
}

// NewRedisWithClient wraps redis client
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: defaultPrefix, now: time.Now}
}

// Close closes the client
func (r *Redis) Close() error {
	return r.client.Close()
}

// Live pings redis
func (r *Redis) Live(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// SaveSession stores the session until it expires
func (r *Redis) SaveSession(ctx context.Context, s *persistence.Session) error {
	return r.setJSON(ctx, r.key("session", s.ID), s, s.Expires)
}

// LoadSession returns nil if there is no session or it is expired
func (r *Redis) LoadSession(ctx context.Context, id string) (*persistence.Session, error) {
	var res persistence.Session
	ok, err := r.getJSON(ctx, r.key("session", id), &res)
	if err != nil || !ok {
		return nil, err
	}
	return &res, nil
}

// SaveInterview stores the interview until iv.Expires
func (r *Redis) SaveInterview(ctx context.Context, iv *persistence.Interview) error {
	return r.setJSON(ctx, r.key("interview", iv.ID), iv, iv.Expires)
}

// LoadInterview returns nil if there is no interview
func (r *Redis) LoadInterview(ctx context.Context, id string) (*persistence.Interview, error) {
	var res persistence.Interview
	ok, err := r.getJSON(ctx, r.key("interview", id), &res)
	if err != nil || !ok {
		return nil, err
	}
	return &res, nil
}

// AppendLines adds transcript lines of the interview, the list expires at expires
func (r *Redis) AppendLines(ctx context.Context, id string, expires time.Time, lines ...persistence.Line) error {
	if len(lines) == 0 {
		return nil
	}
	ttl, err := r.ttl(expires)
	if err != nil {
		return err
	}
	values := make([]interface{}, 0, len(lines))
	for _, l := range lines {
		b, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("can't marshal line: %w", err)
		}
		values = append(values, b)
	}
	key := r.key("lines", id)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, values...)
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("can't append lines: %w", err)
	}
	return nil
}

// LoadLines returns all transcript lines of the interview in order
func (r *Redis) LoadLines(ctx context.Context, id string) ([]persistence.Line, error) {
	values, err := r.client.LRange(ctx, r.key("lines", id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("can't load lines: %w", err)
	}
	res := make([]persistence.Line, 0, len(values))
	for _, v := range values {
		var l persistence.Line
		if err := json.Unmarshal([]byte(v), &l); err != nil {
			return nil, fmt.Errorf("can't unmarshal line: %w", err)
		}
		res = append(res, l)
	}
	return res, nil
}

// ClaimEvaluation sets evaluation id of the interview if none is set yet.
// Returns the stored id and true if the passed id was stored
func (r *Redis) ClaimEvaluation(ctx context.Context, interviewID, evaluationID string, expires time.Time) (string, bool, error) {
	ttl, err := r.ttl(expires)
	if err != nil {
		return "", false, err
	}
	key := r.key("evaluation", interviewID)
	ok, err := r.client.SetNX(ctx, key, evaluationID, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("can't set evaluation: %w", err)
	}
	if ok {
		return evaluationID, true, nil
	}
	res, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", false, fmt.Errorf("can't get evaluation: %w", err)
	}
	return res, false, nil
}

// EvaluationID returns the claimed evaluation id or "" if the interview is not finished
func (r *Redis) EvaluationID(ctx context.Context, interviewID string) (string, error) {
	res, err := r.client.Get(ctx, r.key("evaluation", interviewID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("can't get evaluation: %w", err)
	}
	return res, nil
}

// ReleaseEvaluation drops the claimed evaluation id, used when the claim could not be completed
func (r *Redis) ReleaseEvaluation(ctx context.Context, interviewID string) error {
	if err := r.client.Del(ctx, r.key("evaluation", interviewID)).Err(); err != nil {
		return fmt.Errorf("can't delete evaluation: %w", err)
	}
	return nil
}

func (r *Redis) key(kind, id string) string {
	return r.prefix + kind + ":" + id
}

func (r *Redis) ttl(expires time.Time) (time.Duration, error) {
	res := expires.Sub(r.now())
	if res <= 0 {
		return 0, errors.Errorf("already expired at %s", expires.Format(time.RFC3339))
	}
	return res, nil
}

func (r *Redis) setJSON(ctx context.Context, key string, v interface{}, expires time.Time) error {
	ttl, err := r.ttl(expires)
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("can't marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("can't save %s: %w", key, err)
	}
	return nil
}

func (r *Redis) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("can't load %s: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("can't unmarshal %s: %w", key, err)
	}
	return true, nil
}
