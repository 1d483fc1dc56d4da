package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"

	"github.com/georgemblack/feed-sync/pkg/config"
	"github.com/georgemblack/feed-sync/pkg/remote"
	"github.com/georgemblack/feed-sync/pkg/util"
	"github.com/valkey-io/valkey-go"
	"github.com/vmihailenco/msgpack/v5"
)

// Swap the staging hash over the live one and drop liked state, in one step.
// KEYS: staging, posts, liked
var swapScript = valkey.NewLuaScript(`
redis.call('DEL', KEYS[3])
if redis.call('EXISTS', KEYS[1]) == 1 then
	redis.call('RENAME', KEYS[1], KEYS[2])
else
	redis.call('DEL', KEYS[2])
end
return 1
`)

// Returns -1 when the post does not exist, otherwise the new liked value.
// KEYS: posts, liked. ARGV: id
var toggleScript = valkey.NewLuaScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return -1
end
if redis.call('SREM', KEYS[2], ARGV[1]) == 1 then
	return 0
end
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)

// Valkey stores posts as msgpack values in a hash keyed by id, and liked ids in a set.
// Keys share a hash tag so the scripts stay valid on a cluster.
type Valkey struct {
	client  valkey.Client
	posts   string
	liked   string
	staging string
}

var _ Store = Valkey{}

// NewValkey creates a new Valkey client.
func NewValkey(cfg config.Config) (Valkey, error) {
	var tlsConfig *tls.Config // nil by default
	if cfg.ValkeyTLSEnabled {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: false, // Validate the server's certificate
		}
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.ValkeyAddress},
		TLSConfig:   tlsConfig,
	})
	if err != nil {
		return Valkey{}, util.WrapErr("failed to create valkey client", err)
	}

	return Valkey{
		client:  client,
		posts:   fmt.Sprintf("{%s}:posts", cfg.ValkeyKeyPrefix),
		liked:   fmt.Sprintf("{%s}:liked", cfg.ValkeyKeyPrefix),
		staging: fmt.Sprintf("{%s}:posts:staging", cfg.ValkeyKeyPrefix),
	}, nil
}

// ReplaceAll writes the new set to a staging hash, then swaps it in with a script.
// Callers must not run two ReplaceAll calls against the same prefix concurrently.
func (v Valkey) ReplaceAll(ctx context.Context, posts []remote.Post) error {
	cmds := make(valkey.Commands, 0, 2)
	cmds = append(cmds, v.client.B().Del().Key(v.staging).Build())

	if len(posts) > 0 {
		fields := v.client.B().Hset().Key(v.staging).FieldValue()
		for _, post := range posts {
			bytes, err := msgpack.Marshal(FromPost(post))
			if err != nil {
				return util.WrapErr("failed to marshal record", err)
			}
			fields = fields.FieldValue(strconv.FormatInt(post.ID, 10), string(bytes))
		}
		cmds = append(cmds, fields.Build())
	}

	for _, resp := range v.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return util.WrapErr("failed to write staging posts", err)
		}
	}

	err := swapScript.Exec(ctx, v.client, []string{v.staging, v.posts, v.liked}, nil).Error()
	if err != nil {
		return util.WrapErr("failed to swap staging posts", err)
	}
	return nil
}

func (v Valkey) FetchAll(ctx context.Context) ([]StoredPost, error) {
	resps := v.client.DoMulti(ctx,
		v.client.B().Hgetall().Key(v.posts).Build(),
		v.client.B().Smembers().Key(v.liked).Build(),
	)

	records, err := resps[0].AsStrMap()
	if err != nil {
		return nil, util.WrapErr("failed to read posts", err)
	}
	likedIDs, err := resps[1].AsStrSlice()
	if err != nil {
		return nil, util.WrapErr("failed to read liked ids", err)
	}

	liked := make(map[string]bool, len(likedIDs))
	for _, id := range likedIDs {
		liked[id] = true
	}

	result := make([]StoredPost, 0, len(records))
	for id, value := range records {
		var post StoredPost
		if err := msgpack.Unmarshal([]byte(value), &post); err != nil {
			return nil, util.WrapErr(fmt.Sprintf("failed to unmarshal post %s", id), err)
		}
		post.Liked = liked[id]
		result = append(result, post)
	}
	return result, nil
}

func (v Valkey) ToggleLiked(ctx context.Context, id int64) error {
	resp := toggleScript.Exec(ctx, v.client, []string{v.posts, v.liked}, []string{strconv.FormatInt(id, 10)})
	result, err := resp.AsInt64()
	if err != nil {
		return util.WrapErr(fmt.Sprintf("failed to toggle post %d", id), err)
	}
	if result < 0 {
		return util.WrapErr(fmt.Sprintf("failed to toggle post %d", id), ErrNotFound)
	}
	return nil
}

func (v Valkey) Clear(ctx context.Context) error {
	cmd := v.client.B().Del().Key(v.posts, v.liked, v.staging).Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return util.WrapErr("failed to delete keys", err)
	}
	return nil
}

func (v Valkey) Close() {
	v.client.Close()
}
