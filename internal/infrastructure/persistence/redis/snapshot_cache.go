package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var cacheTracer = otel.Tracer("redis.cache")

// SnapshotCache 任务快照缓存。任务状态查询是轮询热路径，
// 短 TTL 缓存可以把同一任务的并发查询压到一次数据库读。
type SnapshotCache struct {
	client *Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewSnapshotCache 创建任务快照缓存
func NewSnapshotCache(client *Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = time.Second
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(taskID string) string {
	return "task:snapshot:" + taskID
}

// GetOrLoad 读穿缓存。未命中时经 singleflight 合并并发加载，
// 加载结果按短 TTL 回填。
func (c *SnapshotCache) GetOrLoad(ctx context.Context, taskID string, loader func(ctx context.Context) (any, error)) ([]byte, error) {
	key := snapshotKey(taskID)
	ctx, span := cacheTracer.Start(ctx, "cache.snapshot.GetOrLoad",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, key).Bytes()
	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return val, nil
	}
	if !IsNil(err) {
		span.RecordError(err)
		// 缓存故障时直接走加载器，不让缓存层阻断查询
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	result, err, _ := c.group.Do(key, func() (any, error) {
		loaded, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		bytes, err := json.Marshal(loaded)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		if setErr := c.client.rdb.Set(ctx, key, bytes, c.ttl).Err(); setErr != nil {
			span.RecordError(setErr)
		}
		return bytes, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Invalidate 任务状态变更后清掉旧快照
func (c *SnapshotCache) Invalidate(ctx context.Context, taskID string) {
	if err := c.client.Del(ctx, snapshotKey(taskID)); err != nil {
		// 删除失败只影响最长一个 TTL 的陈旧读，记录追踪即可
		trace.SpanFromContext(ctx).RecordError(err)
	}
}
