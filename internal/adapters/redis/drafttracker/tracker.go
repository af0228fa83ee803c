package drafttracker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/directoryhub/onboarding-api/internal/domain"
	"github.com/directoryhub/onboarding-api/internal/ports/out/clock"
	"github.com/directoryhub/onboarding-api/internal/ports/out/drafttracker"
)

const keyPrefix = "onboarding:draft:"

// recordStep applies the highest-step rule atomically.
// KEYS[1] marker hash; ARGV: step, role, updated_at, ttl millis.
var recordStep = goredis.NewScript(`
local step = tonumber(ARGV[1])
local curRole = redis.call('HGET', KEYS[1], 'role')
local curStep = tonumber(redis.call('HGET', KEYS[1], 'step') or '0')
if curRole == ARGV[2] and curStep > step then
	step = curStep
end
redis.call('HSET', KEYS[1], 'step', step, 'role', ARGV[2], 'updated_at', ARGV[3])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return step
`)

// Tracker is a Redis implementation of drafttracker.Tracker. Each identity has one hash
// that expires after the configured TTL of inactivity.
type Tracker struct {
	client goredis.Cmdable
	clock  clock.Clock
	ttl    time.Duration
}

func NewTracker(client goredis.Cmdable, clk clock.Clock, ttl time.Duration) *Tracker {
	return &Tracker{client: client, clock: clk, ttl: ttl}
}

func key(id domain.IdentityID) string {
	return keyPrefix + string(id)
}

func (t *Tracker) RecordStep(ctx context.Context, id domain.IdentityID, step domain.Step, role domain.Role) error {
	if !step.Trackable() {
		return nil
	}
	err := recordStep.Run(ctx, t.client, []string{key(id)},
		int(step),
		string(role),
		t.clock.Now().UTC().Format(time.RFC3339Nano),
		t.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("record draft step: %w", err)
	}
	return nil
}

func (t *Tracker) LastStep(ctx context.Context, id domain.IdentityID) (drafttracker.Marker, bool, error) {
	fields, err := t.client.HGetAll(ctx, key(id)).Result()
	if err != nil {
		return drafttracker.Marker{}, false, fmt.Errorf("read draft marker: %w", err)
	}
	if len(fields) == 0 {
		return drafttracker.Marker{}, false, nil
	}
	step, err := strconv.Atoi(fields["step"])
	if err != nil {
		return drafttracker.Marker{}, false, fmt.Errorf("decode draft step %q: %w", fields["step"], err)
	}
	m := drafttracker.Marker{
		IdentityID: id,
		Step:       domain.Step(step),
		Role:       domain.Role(fields["role"]),
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		m.UpdatedAt = ts.UTC()
	}
	return m, true, nil
}

func (t *Tracker) Clear(ctx context.Context, id domain.IdentityID) error {
	if err := t.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("clear draft marker: %w", err)
	}
	return nil
}
