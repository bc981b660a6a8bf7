package reference

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"fakedetect/internal/features"
)

// RedisLoader reads and writes profiles stored as Redis hashes.
//
// Layout under prefix:
//
//	{prefix}categories        set of profile names
//	{prefix}profile:{name}    hash of feature name -> value, plus "scale"
//	{prefix}default           fallback profile name
type RedisLoader struct {
	client *redis.Client
	prefix string
}

// NewRedisLoader connects to the Redis instance at url.
// Returns error if connection fails.
func NewRedisLoader(url, prefix string) (*RedisLoader, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	if prefix == "" {
		prefix = "fakedetect:"
	}
	return &RedisLoader{client: client, prefix: prefix}, nil
}

// Load reads every profile listed in the categories set.
func (l *RedisLoader) Load(ctx context.Context) (*ProfileSet, error) {
	names, err := l.client.SMembers(ctx, l.prefix+"categories").Result()
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no profiles under %scategories", l.prefix)
	}

	pipe := l.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(names))
	for i, name := range names {
		cmds[i] = pipe.HGetAll(ctx, l.prefix+"profile:"+name)
	}
	fallback := pipe.Get(ctx, l.prefix+"default")
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}

	profiles := make([]Profile, 0, len(names))
	for i, name := range names {
		p, err := profileFromHash(name, cmds[i].Val())
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	def, err := fallback.Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("loading default category: %w", err)
	}
	return NewProfileSet(def, profiles...)
}

// Save writes profiles and the fallback name in one transaction.
func (l *RedisLoader) Save(ctx context.Context, set *ProfileSet) error {
	pipe := l.client.TxPipeline()
	for _, p := range set.Profiles() {
		fields := make(map[string]any, 7)
		for name, v := range p.Features.Map() {
			fields[name] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		fields["scale"] = strconv.FormatFloat(p.Scale, 'g', -1, 64)

		key := l.prefix + "profile:" + p.Name
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.SAdd(ctx, l.prefix+"categories", p.Name)
	}
	pipe.Set(ctx, l.prefix+"default", set.Fallback(), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving profiles: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (l *RedisLoader) Close() error {
	return l.client.Close()
}

func profileFromHash(name string, fields map[string]string) (Profile, error) {
	if len(fields) == 0 {
		return Profile{}, fmt.Errorf("profile %q has no fields", name)
	}
	values := make(map[string]float64, len(fields))
	scale := 1.0
	for k, raw := range fields {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Profile{}, fmt.Errorf("profile %q field %s: %w", name, k, err)
		}
		if k == "scale" {
			scale = v
			continue
		}
		values[k] = v
	}
	scores, err := features.FromMap(values)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %q: %w", name, err)
	}
	return Profile{Name: name, Features: scores, Scale: scale}, nil
}
