// Package audit records minimal security events. Events never carry secrets,
// hashes or anything derived from them.
package audit

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

const (
	ActionVerify = "token.verify"
	ActionRotate = "token.rotate"
	ActionDelete = "token.delete"
)

type Event struct {
	Action       string
	Outcome      Outcome
	CredentialID string
	Time         time.Time
}

type Recorder interface {
	Record(ctx context.Context, event Event)
}

type LogRecorder struct{}

func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

func (LogRecorder) Record(_ context.Context, event Event) {
	entry := log.Info().
		Str("audit", event.Action).
		Str("outcome", string(event.Outcome))
	if event.CredentialID != "" {
		entry = entry.Str("credentialId", event.CredentialID)
	}
	entry.Msg("audit event")
}

// DefaultRedisTimeout bounds one stream append.
const DefaultRedisTimeout = 250 * time.Millisecond

// RedisRecorder appends events to a capped redis stream. Each append is
// bounded by a short timeout so a slow redis cannot stall the request that
// produced the event. The client must have ContextTimeoutEnabled set for the
// bound to cover socket reads and writes.
type RedisRecorder struct {
	client  *goredis.Client
	stream  string
	maxLen  int64
	timeout time.Duration
}

func NewRedisRecorder(client *goredis.Client, stream string, maxLen int64) *RedisRecorder {
	return &RedisRecorder{client: client, stream: stream, maxLen: maxLen, timeout: DefaultRedisTimeout}
}

func (r *RedisRecorder) WithTimeout(timeout time.Duration) *RedisRecorder {
	r.timeout = timeout
	return r
}

func (r *RedisRecorder) Record(ctx context.Context, event Event) {
	values := map[string]any{
		"action":  event.Action,
		"outcome": string(event.Outcome),
		"ts":      event.Time.UnixMilli(),
	}
	if event.CredentialID != "" {
		values["credentialId"] = event.CredentialID
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	err := r.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		log.Warn().Err(err).Str("audit", event.Action).Msg("failed to append audit event")
	}
}

type multiRecorder []Recorder

// Multi fans an event out to every recorder in order.
func Multi(recorders ...Recorder) Recorder {
	return multiRecorder(recorders)
}

func (m multiRecorder) Record(ctx context.Context, event Event) {
	for _, r := range m {
		r.Record(ctx, event)
	}
}
