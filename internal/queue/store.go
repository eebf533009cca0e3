package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheTTL = time.Hour

	jobKeyPrefix    = "job:"
	statusKeyPrefix = "status:"
	resultKeyPrefix = "result:"
)

func jobKey(proposalID string) string    { return jobKeyPrefix + proposalID }
func statusKey(proposalID string) string { return statusKeyPrefix + proposalID }
func resultKey(proposalID string) string { return resultKeyPrefix + proposalID }
func stateSetKey(lane string, s State) string {
	return "jobs:" + lane + ":" + s.String()
}

// addJobScript creates a job unless a non-failed one already exists for the proposal.
// Returns {created, jobId}.
var addJobScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if state and state ~= 'failed' then
  return {0, redis.call('HGET', KEYS[1], 'id')}
end
if state == 'failed' then
  local oldLane = redis.call('HGET', KEYS[1], 'lane')
  redis.call('SREM', 'jobs:' .. oldLane .. ':failed', ARGV[2])
  redis.call('DEL', KEYS[1])
else
  for _, l in ipairs({'high', 'normal'}) do
    redis.call('SREM', 'jobs:' .. l .. ':completed', ARGV[2])
    redis.call('SREM', 'jobs:' .. l .. ':failed', ARGV[2])
  end
end
redis.call('HSET', KEYS[1],
  'id', ARGV[1], 'proposalId', ARGV[2], 'lane', ARGV[3], 'weight', ARGV[4],
  'state', 'waiting', 'payload', ARGV[5], 'createdAt', ARGV[6], 'updatedAt', ARGV[6])
redis.call('SADD', KEYS[2], ARGV[2])
return {1, ARGV[1]}
`)

// transitionScript moves a job to a new state. Terminal states are immutable and
// expire after ARGV[7] seconds.
// Returns 1 on success, 0 when the job is missing or superseded, -1 when terminal.
var transitionScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'state')
local id = redis.call('HGET', KEYS[1], 'id')
if not cur or id ~= ARGV[1] then
  return 0
end
if cur == 'completed' or cur == 'failed' then
  return -1
end
local lane = redis.call('HGET', KEYS[1], 'lane')
redis.call('SMOVE', 'jobs:' .. lane .. ':' .. cur, 'jobs:' .. lane .. ':' .. ARGV[2], ARGV[3])
redis.call('HSET', KEYS[1], 'state', ARGV[2], 'updatedAt', ARGV[4])
if ARGV[5] ~= '' then
  redis.call('HSET', KEYS[1], ARGV[5], ARGV[6])
end
if ARGV[2] == 'completed' or ARGV[2] == 'failed' then
  redis.call('EXPIRE', KEYS[1], ARGV[7])
end
return 1
`)

// Store keeps job state and the status/result caches in Redis.
type Store struct {
	Client *redis.Client
}

// NewStore constructs a Store.
func NewStore(client *redis.Client) *Store {
	return &Store{Client: client}
}

// create inserts a waiting job or returns the existing live job id.
func (s *Store) create(ctx context.Context, job Job) (string, bool, error) {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return "", false, fmt.Errorf("encode payload: %w", err)
	}
	res, err := addJobScript.Run(ctx, s.Client,
		[]string{jobKey(job.ProposalID), stateSetKey(job.Lane, StateWaiting)},
		job.ID,
		job.ProposalID,
		job.Lane,
		job.Weight,
		string(payload),
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Slice()
	if err != nil {
		return "", false, fmt.Errorf("add job: %w", err)
	}
	if len(res) != 2 {
		return "", false, fmt.Errorf("add job: unexpected reply %v", res)
	}
	created, _ := res[0].(int64)
	id, _ := res[1].(string)
	return id, created == 1, nil
}

// Get loads the job for a proposal.
func (s *Store) Get(ctx context.Context, proposalID string) (Job, error) {
	fields, err := s.Client.HGetAll(ctx, jobKey(proposalID)).Result()
	if err != nil {
		return Job{}, err
	}
	if len(fields) == 0 {
		return Job{}, ErrNotFound
	}
	return jobFromHash(fields)
}

func jobFromHash(fields map[string]string) (Job, error) {
	state, err := parseState(fields["state"])
	if err != nil {
		return Job{}, err
	}
	priority, err := ParsePriority(fields["lane"])
	if err != nil {
		return Job{}, err
	}
	job := Job{
		ID:           fields["id"],
		ProposalID:   fields["proposalId"],
		Priority:     priority,
		Lane:         priority.Lane(),
		State:        state,
		StateName:    state.String(),
		FailedReason: fields["failedReason"],
	}
	if w, err := strconv.Atoi(fields["weight"]); err == nil {
		job.Weight = w
	}
	if raw := fields["payload"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.Payload); err != nil {
			return Job{}, fmt.Errorf("decode payload: %w", err)
		}
	}
	if raw := fields["result"]; raw != "" {
		job.Result = json.RawMessage(raw)
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["createdAt"]); err == nil {
		job.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["updatedAt"]); err == nil {
		job.UpdatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["claimedAt"]); err == nil {
		job.ClaimedAt = &ts
	}
	return job, nil
}

func (s *Store) transition(ctx context.Context, job Job, to State, field, value string) error {
	res, err := transitionScript.Run(ctx, s.Client,
		[]string{jobKey(job.ProposalID)},
		job.ID,
		to.String(),
		job.ProposalID,
		time.Now().UTC().Format(time.RFC3339Nano),
		field,
		value,
		int64(cacheTTL/time.Second),
	).Int()
	if err != nil {
		return fmt.Errorf("transition job %s: %w", job.ID, err)
	}
	switch res {
	case 1:
		return nil
	case -1:
		return ErrTerminal
	default:
		return ErrNotFound
	}
}

// activeIDs lists proposal ids whose job is claimed in the lane.
func (s *Store) activeIDs(ctx context.Context, lane string) ([]string, error) {
	return s.Client.SMembers(ctx, stateSetKey(lane, StateActive)).Result()
}

// forgetActive drops a set member whose job hash no longer exists.
func (s *Store) forgetActive(ctx context.Context, lane, proposalID string) error {
	return s.Client.SRem(ctx, stateSetKey(lane, StateActive), proposalID).Err()
}

// SetStatus writes the ephemeral status cache entry.
func (s *Store) SetStatus(ctx context.Context, proposalID string, status Status) error {
	return s.Client.Set(ctx, statusKey(proposalID), string(status), cacheTTL).Err()
}

// GetStatus reads the ephemeral status cache entry.
func (s *Store) GetStatus(ctx context.Context, proposalID string) (Status, error) {
	val, err := s.Client.Get(ctx, statusKey(proposalID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return Status(val), nil
}

// SetResult caches the terminal analysis payload.
func (s *Store) SetResult(ctx context.Context, proposalID string, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.Client.Set(ctx, resultKey(proposalID), payload, cacheTTL).Err()
}

// GetResult returns the cached analysis payload.
func (s *Store) GetResult(ctx context.Context, proposalID string) (json.RawMessage, error) {
	val, err := s.Client.Get(ctx, resultKey(proposalID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return json.RawMessage(val), nil
}

// Health counts jobs per lane and state.
func (s *Store) Health(ctx context.Context) (Health, error) {
	states := []State{StateWaiting, StateActive, StateCompleted, StateFailed}
	pipe := s.Client.Pipeline()
	cmds := make(map[string][]*redis.IntCmd, len(Lanes))
	for _, p := range Lanes {
		lane := p.Lane()
		for _, st := range states {
			cmds[lane] = append(cmds[lane], pipe.SCard(ctx, stateSetKey(lane, st)))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("queue health: %w", err)
	}
	out := make(Health, len(Lanes))
	for lane, c := range cmds {
		out[lane] = LaneCounts{
			Waiting:   c[0].Val(),
			Active:    c[1].Val(),
			Completed: c[2].Val(),
			Failed:    c[3].Val(),
		}
	}
	return out, nil
}
