package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Job is one asynchronous conversion request as carried on the stream.
type Job struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Rotate     bool      `json:"rotate,omitempty"`
	Reverse    bool      `json:"reverse,omitempty"`
	TotalPages int       `json:"total_pages,omitempty"`
	UploadName string    `json:"upload_name"`
	InputKey   string    `json:"input_key"`
	CreatedAt  time.Time `json:"created_at"`
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}

// RedisQueue implements the job queue on Redis Streams with a consumer group.
type RedisQueue struct {
	client    *redis.Client
	Stream    string
	Group     string
	CancelKey string
	DLQStream string
	cancelTTL time.Duration
}

// NewRedisQueue ensures the stream and consumer group exist.
func NewRedisQueue(ctx context.Context, c *redis.Client, stream, group string) (*RedisQueue, error) {
	q := &RedisQueue{
		client:    c,
		Stream:    stream,
		Group:     group,
		CancelKey: stream + ":cancelled",
		DLQStream: stream + ":dlq",
		cancelTTL: 7 * 24 * time.Hour,
	}
	// MKSTREAM creates the stream if missing
	if err := c.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil && !isBusyGroupErr(err) {
		return nil, fmt.Errorf("xgroup create: %w", err)
	}
	return q, nil
}

func isBusyGroupErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP")
}

// Ping checks redis connectivity.
func (q *RedisQueue) Ping(ctx context.Context) error { return q.client.Ping(ctx).Err() }

// Enqueue adds a job to the stream as a single-field entry {data: <json>}.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.Stream,
		Values: map[string]any{"data": string(payload), "job_id": job.ID},
	}).Err()
}

// Dequeue blocks up to timeout for the next job. A nil job with a nil error
// means the wait timed out.
func (q *RedisQueue) Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, *Job, error) {
	res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.Group,
		Consumer: consumer,
		Streams:  []string{q.Stream, ">"},
		Count:    1,
		Block:    timeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil, nil
		}
		return "", nil, err
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return "", nil, nil
	}
	msg := res[0].Messages[0]
	job, err := decodeJob(msg.Values)
	if err != nil {
		// poison message: ack it so it is not redelivered forever
		_ = q.Ack(ctx, msg.ID)
		return msg.ID, nil, err
	}
	return msg.ID, job, nil
}

func decodeJob(values map[string]any) (*Job, error) {
	var raw []byte
	switch t := values["data"].(type) {
	case string:
		raw = []byte(t)
	case []byte:
		raw = t
	default:
		return nil, errors.New("stream entry has no data field")
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if job.ID == "" {
		return nil, errors.New("job without id")
	}
	return &job, nil
}

// Ack marks a message as processed.
func (q *RedisQueue) Ack(ctx context.Context, msgID string) error {
	if msgID == "" {
		return nil
	}
	return q.client.XAck(ctx, q.Stream, q.Group, msgID).Err()
}

// CancelJob marks a job as cancelled. Workers check this before processing.
func (q *RedisQueue) CancelJob(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.SAdd(ctx, q.CancelKey, jobID)
	pipe.Expire(ctx, q.CancelKey, q.cancelTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// IsCancelled returns true if job is cancelled.
func (q *RedisQueue) IsCancelled(ctx context.Context, jobID string) (bool, error) {
	return q.client.SIsMember(ctx, q.CancelKey, jobID).Result()
}

// AddDLQ records a failed job with the reason.
func (q *RedisQueue) AddDLQ(ctx context.Context, job Job, reason string) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.DLQStream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]any{"data": string(payload), "reason": reason},
	}).Err()
}

// Depth returns the number of entries in the stream.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.XLen(ctx, q.Stream).Result()
}
