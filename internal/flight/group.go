// Package flight collapses concurrent cache fills for the same key into a
// single upstream fetch, optionally coordinated across replicas through a
// distributed lock.
package flight

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// UnlockFunc 释放 Locker 获得的锁。
type UnlockFunc func(ctx context.Context) error

// Locker 为同一 key 提供跨进程互斥；单实例部署使用 NoopLocker。
type Locker interface {
	Lock(ctx context.Context, key string) (UnlockFunc, error)
}

// NoopLocker never blocks.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (UnlockFunc, error) {
	return func(context.Context) error { return nil }, nil
}

// Group runs at most one fill per key inside this process.
type Group struct {
	sf     singleflight.Group
	locker Locker
}

// NewGroup 创建 Group，locker 为空时退化为纯进程内去重。
func NewGroup(locker Locker) *Group {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &Group{locker: locker}
}

// errFillAbandoned 表示排队的 fill 在开始前其发起方已取消，同 key 的等待者重新发起。
var errFillAbandoned = errors.New("fill abandoned before start")

const (
	callPending int32 = iota
	callRunning
	callAbandoned
)

// Do executes fn for key unless another caller is already doing so, in which
// case it waits and returns that caller's result. leader reports whether fn
// ran on behalf of this caller. The leader holds the Locker for the duration
// of fn and always waits for it; followers stop waiting when ctx is done.
func (g *Group) Do(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (v any, leader bool, err error) {
	for {
		v, leader, err = g.do(ctx, key, fn)
		if !errors.Is(err, errFillAbandoned) || ctx.Err() != nil {
			return v, leader, err
		}
	}
}

func (g *Group) do(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, bool, error) {
	var state atomic.Int32
	ch := g.sf.DoChan(key, func() (result any, err error) {
		if !state.CompareAndSwap(callPending, callRunning) {
			return nil, errFillAbandoned
		}
		defer func() {
			// DoChan 在独立 goroutine 中重新 panic，会直接终止进程
			if r := recover(); r != nil {
				result, err = nil, fmt.Errorf("fill %s panicked: %v", key, r)
			}
		}()
		unlock, lockErr := g.locker.Lock(ctx, key)
		if lockErr != nil {
			return nil, fmt.Errorf("acquire fill lock for %s: %w", key, lockErr)
		}
		defer func() {
			// 锁释放失败只影响过期时间，不改变本次结果
			_ = unlock(context.WithoutCancel(ctx))
		}()
		return fn(ctx)
	})

	select {
	case res := <-ch:
		return res.Val, state.Load() == callRunning, res.Err
	case <-ctx.Done():
		if state.CompareAndSwap(callPending, callAbandoned) {
			return nil, false, ctx.Err()
		}
		// fn 已在为本调用方执行，调用方持有的资源（如响应）必须等其结束
		res := <-ch
		return res.Val, true, res.Err
	}
}
