// Package retry provides exponential backoff for transient failures, used by
// the NATS client and the workspace store.
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return kv.Put(ctx, key, data)
//	})
//
// Errors wrapped with NonRetryable stop immediately. Config.RetryIf narrows
// retries further, for example to errors.IsTransient.
package retry
