package shape

import (
	"fmt"
	"sync"
)

// Cell 只计算一次的缓存单元
// 并发首次访问时只有一个调用者执行初始化，其余调用者等待其完成；
// 初始化完成后的读取不加锁。初始化的结果（包括错误）被永久保留。
type Cell[T any] struct {
	once sync.Once
	val  T
	err  error
}

// Get 返回缓存的值，首次调用时执行 init
// init 中的 panic 被转换为错误保存下来
func (c *Cell[T]) Get(init func() (T, error)) (T, error) {
	c.once.Do(func() {
		defer func() {
			if p := recover(); p != nil {
				if err, ok := p.(error); ok {
					c.err = fmt.Errorf("shape: 初始化失败: %w", err)
				} else {
					c.err = fmt.Errorf("shape: 初始化失败: %v", p)
				}
			}
		}()
		c.val, c.err = init()
	})
	return c.val, c.err
}
