package retry

import "context"

// DoWithResult runs fn through r and returns its value on success.
//
//	resp, err := retry.DoWithResult(ctx, r, func() (*llm.ChatResponse, error) {
//	    return call(ctx)
//	})
func DoWithResult[T any](ctx context.Context, r Retryer, fn func() (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
