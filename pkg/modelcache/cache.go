// Package modelcache 提供了一个有界的 LRU 缓存，用于持有加载代价高昂的模型句柄。
//
// 模型加载（OCR 权重、Embedding 权重）相对于推理本身非常昂贵，而系统处理的
// 文档/查询只会反复命中少量固定的模型配置，因此用一个小容量的 LRU 缓存持有
// 已加载的句柄。缓存是多请求共享的唯一可变资源，所有簿记操作都在互斥锁内完成。
package modelcache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
)

// ErrModelLoad 表示模型构造失败。没有模型时下游什么都做不了，该错误向上传播。
var ErrModelLoad = errors.New("model load failure")

// Cache 是一个按能力键 (capability key) 索引模型句柄的 LRU 缓存。
// 命中会刷新条目的新近度；满容量时的插入会淘汰最久未使用的条目。
// 被淘汰的句柄只是解除引用，不承诺显式关闭。
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // 头部为最近使用
	entries  map[string]*list.Element
}

type entry struct {
	key    string
	handle interface{}
}

// New 创建一个固定容量的模型缓存。容量小于 1 时按 1 处理。
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Acquire 按能力键获取模型句柄。命中时返回既有句柄并将其标记为最近使用；
// 未命中时调用 build 构造模型并插入缓存，必要时淘汰最久未使用的条目。
// build 失败时错误原样向上传播，缓存不会插入任何条目。
//
// build 在锁内执行：这保证同一个键的并发 Acquire 不会构造两次模型，
// 也保证刚获取的句柄不会在持有者使用期间被并发淘汰重建。
func (c *Cache) Acquire(key string, build func() (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*entry).handle, nil
	}

	handle, err := build()
	if err != nil {
		return nil, fmt.Errorf("%w: key=%s: %v", ErrModelLoad, key, err)
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry).key)
		}
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, handle: handle})
	return handle, nil
}

// Len 返回当前缓存的条目数。
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Contains 报告某个能力键当前是否在缓存中，不影响新近度。
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}
