// Package statecache implements the State Cache's document-store contract
// over Redis: wardrobes/{owner_id}/cubes/{cube_id} documents, atomic face
// merges, and a change-subscription fan-out grounded on the session
// service's redis/v9 usage pattern.
package statecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/integrity-spine/spine/internal/domain/entities"
	spineerrors "github.com/integrity-spine/spine/pkg/errors"
)

const (
	cubeKeyPrefix     = "wardrobes:"
	cubeChannelPrefix = "cube-changes:"
	cubeDocTTL        = 24 * time.Hour
	// subscriberBufferSize bounds the per-subscriber channel; a slow
	// consumer drops the oldest pending change rather than blocking the
	// publisher, per the state cache's fan-out contract.
	subscriberBufferSize = 32
)

// RedisClient is the narrow surface this package depends on, mirroring the
// session service's RedisClient interface so callers can substitute a
// miniredis-backed fake in tests.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisCubeCacheRepository implements repositories.CubeCacheRepository.
type RedisCubeCacheRepository struct {
	client RedisClient
	log    *zap.Logger
}

func NewRedisCubeCacheRepository(client RedisClient, log *zap.Logger) *RedisCubeCacheRepository {
	return &RedisCubeCacheRepository{client: client, log: log}
}

func cubeKey(ownerID, cubeID uuid.UUID) string {
	return fmt.Sprintf("%swardrobe:%s:cube:%s", cubeKeyPrefix, ownerID, cubeID)
}

func cubeChannel(ownerID, cubeID uuid.UUID) string {
	return fmt.Sprintf("%s%s:%s", cubeChannelPrefix, ownerID, cubeID)
}

func (r *RedisCubeCacheRepository) Get(ctx context.Context, ownerID, cubeID uuid.UUID) (*entities.CubeDocument, error) {
	raw, err := r.client.Get(ctx, cubeKey(ownerID, cubeID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, spineerrors.Wrap(spineerrors.NewServiceUnavailable("state cache unavailable"), err)
	}
	var doc entities.CubeDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, spineerrors.Wrap(spineerrors.NewInternal("corrupt cube document"), err)
	}
	return &doc, nil
}

func (r *RedisCubeCacheRepository) Put(ctx context.Context, doc *entities.CubeDocument) error {
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	raw, err := json.Marshal(doc)
	if err != nil {
		return spineerrors.Wrap(spineerrors.NewInternal("marshal cube document"), err)
	}
	if err := r.client.Set(ctx, cubeKey(doc.OwnerID, doc.CubeID), raw, cubeDocTTL).Err(); err != nil {
		return spineerrors.Wrap(spineerrors.NewServiceUnavailable("state cache unavailable"), err)
	}
	r.publish(ctx, doc.OwnerID, doc.CubeID, entities.CubeChange{CubeID: doc.CubeID, Kind: "modified", Current: doc})
	return nil
}

// MergeFace reads, mutates, and writes back the single face under the
// document's read-modify-write path. The server stamps UpdatedAt on both
// the face and the document, matching the state cache's server-timestamp
// sentinel semantics: callers never set it themselves.
func (r *RedisCubeCacheRepository) MergeFace(ctx context.Context, ownerID, cubeID uuid.UUID, facet entities.FacetName, face *entities.FaceDocument) error {
	doc, err := r.Get(ctx, ownerID, cubeID)
	if err != nil {
		return err
	}
	previous := doc
	if doc == nil {
		doc = &entities.CubeDocument{
			CubeID:  cubeID,
			OwnerID: ownerID,
			Faces:   map[entities.FacetName]*entities.FaceDocument{},
		}
	}
	if doc.Faces == nil {
		doc.Faces = map[entities.FacetName]*entities.FaceDocument{}
	}
	face.UpdatedAt = time.Now().UTC()
	doc.Faces[facet] = face
	doc.UpdatedAt = face.UpdatedAt

	raw, err := json.Marshal(doc)
	if err != nil {
		return spineerrors.Wrap(spineerrors.NewInternal("marshal cube document"), err)
	}
	if err := r.client.Set(ctx, cubeKey(ownerID, cubeID), raw, cubeDocTTL).Err(); err != nil {
		return spineerrors.Wrap(spineerrors.NewServiceUnavailable("state cache unavailable"), err)
	}
	kind := "modified"
	if previous == nil {
		kind = "added"
	}
	r.publish(ctx, ownerID, cubeID, entities.CubeChange{CubeID: cubeID, Kind: kind, Previous: previous, Current: doc})
	return nil
}

func (r *RedisCubeCacheRepository) publish(ctx context.Context, ownerID, cubeID uuid.UUID, change entities.CubeChange) {
	raw, err := json.Marshal(change)
	if err != nil {
		r.log.Warn("marshal cube change for publish failed", zap.Error(err))
		return
	}
	if err := r.client.Publish(ctx, cubeChannel(ownerID, cubeID), raw).Err(); err != nil {
		r.log.Warn("publish cube change failed", zap.Error(err))
	}
}

// Subscribe fans out changes for one cube to the caller over a bounded
// channel. A slow consumer sees its oldest pending change dropped rather
// than blocking the Redis pub/sub delivery goroutine.
func (r *RedisCubeCacheRepository) Subscribe(ctx context.Context, ownerID, cubeID uuid.UUID) (<-chan entities.CubeChange, func(), error) {
	ps := r.client.Subscribe(ctx, cubeChannel(ownerID, cubeID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, spineerrors.Wrap(spineerrors.NewServiceUnavailable("state cache subscribe failed"), err)
	}

	out := make(chan entities.CubeChange, subscriberBufferSize)
	msgs := ps.Channel()
	done := make(chan struct{})
	cancel := func() {
		close(done)
		_ = ps.Close()
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change entities.CubeChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					r.log.Warn("discarding malformed cube change", zap.Error(err))
					continue
				}
				select {
				case out <- change:
				default:
					// drop oldest, then push the fresh change
					select {
					case <-out:
					default:
					}
					select {
					case out <- change:
					default:
					}
				}
			}
		}
	}()

	return out, cancel, nil
}
