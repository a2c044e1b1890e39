package store

import "context"

// Entry 有序索引条目
type Entry struct {
	Member string
	Score  float64
}

// HashWrite 批量写入中的一次哈希写
type HashWrite struct {
	Key    string
	Fields map[string]string
}

// IndexWrite 批量写入中的一次索引写
type IndexWrite struct {
	Key    string
	Member string
	Score  float64
}

// IncrWrite 批量写入中的一次计数器自增
type IncrWrite struct {
	Key   string
	Field string
	Delta int64
}

// Batch 一次批量写入
// 批量只是把多次写合并到一个往返，不提供跨路径原子性；
// 部分失败留下的不一致由下一次覆盖写修复
type Batch struct {
	Hashes  []HashWrite
	Indexes []IndexWrite
	Incrs   []IncrWrite
}

// Store 实时存储的窄接口
// Redis 适配器和离线适配器实现同一接口，调用方显式选择，
// 不在运行时伪造对象顶替
type Store interface {
	// HashSet 写入（合并）哈希字段
	HashSet(ctx context.Context, key string, fields map[string]string) error

	// HashGetAll 读取整个哈希，键不存在返回空 map
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	// HashGetAllMulti 批量读取多个哈希（一个往返）
	// 返回切片与 keys 一一对应，不存在的键对应空 map
	HashGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)

	// HashIncr 哈希字段自增，返回自增后的值
	HashIncr(ctx context.Context, key, field string, delta int64) (int64, error)

	// IndexAdd 向有序索引写入成员（存在则更新 score）
	IndexAdd(ctx context.Context, key, member string, score float64) error

	// IndexRemove 从有序索引移除成员
	IndexRemove(ctx context.Context, key string, members ...string) error

	// IndexRevRange 按 score 倒序读取成员（目录列表用）
	IndexRevRange(ctx context.Context, key string, offset, count int64) ([]string, error)

	// IndexRangeByScore 按 score 升序读取 score 大于 min 的成员
	// exclusive 为 true 时严格大于（增量拉取的水位语义）
	IndexRangeByScore(ctx context.Context, key string, min float64, exclusive bool) ([]Entry, error)

	// IndexTail 按 score 升序返回最后 count 个成员（全量拉取的截断语义）
	// count <= 0 表示全部
	IndexTail(ctx context.Context, key string, count int64) ([]Entry, error)

	// ApplyBatch 执行批量写入
	ApplyBatch(ctx context.Context, batch Batch) error

	// Delete 删除键
	Delete(ctx context.Context, keys ...string) error

	// Ping 连通性检查
	Ping(ctx context.Context) error
}
