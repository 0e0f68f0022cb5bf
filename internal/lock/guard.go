package lock

import "context"

// Do runs fn while holding the lock for accountNumber. The lock covers exactly
// the unit of work: it is acquired immediately before fn and released on every
// exit path, including a panic inside fn. Release uses a context detached from
// the caller's cancellation so an aborted request still frees the lock.
//
// If acquisition fails, fn is never invoked and the acquisition error is
// returned as-is.
func Do[T any](ctx context.Context, m *Manager, accountNumber string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	handle, err := m.Acquire(ctx, accountNumber)
	if err != nil {
		return zero, err
	}
	defer handle.Release(context.WithoutCancel(ctx))

	return fn(ctx)
}

// Guard binds a key-extraction function so any request type carrying an
// account number can be lock-guarded at its call site.
func Guard[R, T any](m *Manager, key func(R) string) func(context.Context, R, func(context.Context) (T, error)) (T, error) {
	return func(ctx context.Context, req R, fn func(context.Context) (T, error)) (T, error) {
		return Do(ctx, m, key(req), fn)
	}
}
