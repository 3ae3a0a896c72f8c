package sink

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/recpipe/batch"
	"github.com/kbukum/recpipe/errors"
	"github.com/kbukum/recpipe/logger"
)

// DefaultMaxLen bounds a result stream unless configured otherwise.
const DefaultMaxLen = 100000

// streamClient is the part of go-redis the stream sink needs.
type streamClient interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
	Close() error
}

// RedisStream appends each result to a redis stream. Trimming is
// approximate, so the stream may briefly exceed MaxLen.
type RedisStream struct {
	client streamClient
	stream string
	maxLen int64
	log    *logger.Logger
	owned  bool
}

// DialRedis connects to url and verifies the connection.
func DialRedis(ctx context.Context, url, stream string, maxLen int64, log *logger.Logger) (*RedisStream, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.InvalidInput("redis_url", err.Error())
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Unavailable("redis").WithCause(err).WithDetail("addr", opts.Addr)
	}

	s := NewRedisStream(client, stream, maxLen, log)
	s.owned = true
	return s, nil
}

// NewRedisStream writes through an existing client, which the caller
// keeps ownership of.
func NewRedisStream(client streamClient, stream string, maxLen int64, log *logger.Logger) *RedisStream {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisStream{
		client: client,
		stream: stream,
		maxLen: maxLen,
		log:    log.WithComponent("sink"),
	}
}

// Stream returns the stream key.
func (s *RedisStream) Stream() string { return s.stream }

// Write implements Sink. Each entry carries the job id, sequence and
// status as fields next to the full JSON record.
func (s *RedisStream) Write(ctx context.Context, r batch.Result) error {
	rec := NewRecord(r)
	body, err := json.Marshal(rec)
	if err != nil {
		return errors.Internal(err).WithDetail("seq", r.Sequence)
	}

	id, err := s.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"job_id": rec.JobID,
			"seq":    strconv.Itoa(rec.Sequence),
			"status": rec.Status,
			"record": string(body),
		},
	}).Result()
	if err != nil {
		return errors.Storage("xadd", err).WithDetail("stream", s.stream)
	}
	s.log.Debug("result appended", logger.Fields(
		logger.FieldJobID, rec.JobID,
		logger.FieldSequence, rec.Sequence,
		"stream_id", id,
	))
	return nil
}

// Close releases the client if this sink dialed it.
func (s *RedisStream) Close() error {
	if !s.owned {
		return nil
	}
	s.owned = false
	return s.client.Close()
}

var _ Sink = (*RedisStream)(nil)
