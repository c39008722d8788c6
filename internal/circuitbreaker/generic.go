package circuitbreaker

import "context"

// CallWithResult runs fn through b and returns its value.
//
//	price, err := circuitbreaker.CallWithResult(ctx, b, func(ctx context.Context) (float64, error) {
//	    return source.Quote(ctx, "AAPL")
//	})
func CallWithResult[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Call(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
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
