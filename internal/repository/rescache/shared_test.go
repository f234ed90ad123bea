package rescache

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp/internal/db"
	dbRedis "github.com/kailas-cloud/rhokp/internal/db/redis"
)

func TestShared_Miss(t *testing.T) {
	c := NewShared(&mockKVStore{}, time.Minute, zap.NewNop())

	// GET → ErrKeyNotFound (cache miss)
	_, ok, err := c.Get(context.Background(), "k")
	if err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestShared_RoundTrip(t *testing.T) {
	var (
		stored []byte
		ttl    time.Duration
	)
	ms := &mockKVStore{
		setFn: func(_ context.Context, _ string, v []byte, d time.Duration) error {
			stored, ttl = v, d
			return nil
		},
		getFn: func(_ context.Context, _ string) ([]byte, error) {
			return stored, nil
		},
	}
	c := NewShared(ms, 5*time.Minute, zap.NewNop())
	ctx := context.Background()
	want := sampleResult()

	if err := c.Set(ctx, "k", want); err != nil {
		t.Fatal(err)
	}
	if ttl != 5*time.Minute {
		t.Errorf("expected ttl 5m, got %s", ttl)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestShared_StoreErrorReturned(t *testing.T) {
	storeErr := &db.Error{Op: db.OpGet, Err: errors.New("connection refused")}
	ms := &mockKVStore{getFn: func(context.Context, string) ([]byte, error) { return nil, storeErr }}
	c := NewShared(ms, time.Minute, zap.NewNop())

	_, ok, err := c.Get(context.Background(), "k")
	if ok {
		t.Error("store failure must not be a hit")
	}
	if !errors.Is(err, storeErr) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}

func TestShared_CorruptEntryIsMiss(t *testing.T) {
	ms := &mockKVStore{getFn: func(context.Context, string) ([]byte, error) { return []byte("{not json"), nil }}
	c := NewShared(ms, time.Minute, zap.NewNop())

	_, ok, err := c.Get(context.Background(), "k")
	if ok || err != nil {
		t.Errorf("corrupt entry should be a silent miss, got ok=%v err=%v", ok, err)
	}
}

func TestShared_OverRueidis(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	payload, _ := json.Marshal(toDTO(sampleResult()))

	client.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SET" && cmd[1] == "rhokp:resp:abc" && cmd[3] == "EX" && cmd[4] == "300"
		})).
		Return(mock.Result(mock.RedisString("OK")))
	client.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "rhokp:resp:abc")).
		Return(mock.Result(mock.RedisBlobString(string(payload))))

	c := NewShared(dbRedis.NewStoreForTest(client), 5*time.Minute, zap.NewNop())
	ctx := context.Background()
	if err := c.Set(ctx, "rhokp:resp:abc", sampleResult()); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.Get(ctx, "rhokp:resp:abc")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.NumFound != 42 || len(got.Docs) != 2 {
		t.Errorf("unexpected result: %+v", got)
	}
}
