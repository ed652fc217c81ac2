// Package natsclient manages the NATS connection vizflow uses for workspace
// storage and event streaming.
//
// The Client connects lazily: NewClient only records options and Connect
// dials the server. Failed dials feed a circuit breaker; after a threshold
// of consecutive failures Connect returns ErrCircuitOpen until the backoff
// elapses, and each reopening doubles the backoff up to a cap.
//
//	client, err := natsclient.NewClient(url, natsclient.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(context.Background())
//
//	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: "vizflow_workspaces"})
//	kv := client.NewKVStore(bucket)
//
// KVStore adds revision checked writes. UpdateWithRetry runs a
// read-modify-write loop that retries only on revision conflicts.
//
// NewTestClient starts a NATS server with testcontainers for integration
// tests.
package natsclient
