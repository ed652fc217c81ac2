package natsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type KVSuite struct {
	suite.Suite
	tc *TestClient
	kv *KVStore
}

func TestKVSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping NATS integration test in short mode")
	}
	suite.Run(t, new(KVSuite))
}

func (s *KVSuite) SetupSuite() {
	s.tc = NewTestClient(s.T(), WithJetStream())
}

func (s *KVSuite) SetupTest() {
	ctx := context.Background()
	name := fmt.Sprintf("test_%d", time.Now().UnixNano())
	bucket, err := s.tc.Client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: name, History: 5})
	s.Require().NoError(err)
	s.kv = s.tc.Client.NewKVStore(bucket, func(o *KVOptions) { o.MaxValueSize = 64 })
}

func (s *KVSuite) TestBasicOperations() {
	ctx := context.Background()

	keys, err := s.kv.Keys(ctx)
	s.Require().NoError(err)
	s.Empty(keys)

	rev, err := s.kv.Create(ctx, "a", []byte("1"))
	s.Require().NoError(err)
	_, err = s.kv.Create(ctx, "a", []byte("2"))
	s.ErrorIs(err, ErrKVKeyExists)

	_, err = s.kv.Update(ctx, "a", []byte("2"), rev+10)
	s.ErrorIs(err, ErrKVRevisionMismatch)
	_, err = s.kv.Update(ctx, "a", []byte("2"), rev)
	s.Require().NoError(err)

	entry, err := s.kv.Get(ctx, "a")
	s.Require().NoError(err)
	s.Equal("2", string(entry.Value))

	history, err := s.kv.History(ctx, "a")
	s.Require().NoError(err)
	s.Len(history, 2)
	s.Equal("1", string(history[0].Value))

	_, err = s.kv.Put(ctx, "big", make([]byte, 65))
	s.ErrorIs(err, ErrKVValueTooLarge)

	s.Require().NoError(s.kv.Delete(ctx, "a"))
	_, err = s.kv.Get(ctx, "a")
	s.ErrorIs(err, ErrKVKeyNotFound)
	s.ErrorIs(s.kv.Delete(ctx, "a"), ErrKVKeyNotFound)
}

func (s *KVSuite) TestUpdateWithRetry_Concurrent() {
	ctx := context.Background()
	const writers = 8

	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.kv.UpdateWithRetry(ctx, "counter", func(current []byte) ([]byte, error) {
				var n int
				if current != nil {
					if err := json.Unmarshal(current, &n); err != nil {
						return nil, err
					}
				}
				return json.Marshal(n + 1)
			})
			assert.NoError(s.T(), err)
		}()
	}
	wg.Wait()

	entry, err := s.kv.Get(ctx, "counter")
	s.Require().NoError(err)
	s.Equal(fmt.Sprint(writers), string(entry.Value))
}

func (s *KVSuite) TestUpdateWithRetry_FunctionError() {
	err := s.kv.UpdateWithRetry(context.Background(), "x", func([]byte) ([]byte, error) {
		return nil, assert.AnError
	})
	require.ErrorIs(s.T(), err, assert.AnError)
}
