package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

type counterDoc struct {
	Count int            `json:"count"`
	By    map[string]int `json:"by"`
}

func increment(who string) Transform {
	return func(cur Record) ([]byte, error) {
		var d counterDoc
		if err := json.Unmarshal(cur.Body, &d); err != nil {
			return nil, err
		}
		if d.By == nil {
			d.By = map[string]int{}
		}
		d.Count++
		d.By[who]++
		return json.Marshal(d)
	}
}

func readCounter(t *testing.T, s Store, id string) counterDoc {
	t.Helper()
	rec, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var d counterDoc
	if err := json.Unmarshal(rec.Body, &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return d
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "docs.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{"memory": NewMemory(), "sqlite": sq}
}

func TestStoreBasics(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: Get missing err=%v", name, err)
		}
		a, err := s.Create(ctx, "g1", []byte(`{"count":0}`))
		if err != nil {
			t.Fatalf("%s: Create: %v", name, err)
		}
		if a.Version == "" {
			t.Fatalf("%s: empty version", name)
		}
		if _, err := s.Create(ctx, "g1", []byte(`{}`)); !errors.Is(err, ErrExists) {
			t.Fatalf("%s: duplicate Create err=%v", name, err)
		}
		b, err := s.CompareAndSwap(ctx, "g1", a.Version, []byte(`{"count":1}`))
		if err != nil {
			t.Fatalf("%s: CompareAndSwap: %v", name, err)
		}
		if b.Version == a.Version {
			t.Fatalf("%s: version not restamped", name)
		}
		if _, err := s.CompareAndSwap(ctx, "g1", a.Version, []byte(`{"count":2}`)); !errors.Is(err, ErrVersionMismatch) {
			t.Fatalf("%s: stale CompareAndSwap err=%v", name, err)
		}
		if _, err := s.CompareAndSwap(ctx, "nope", a.Version, nil); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: CompareAndSwap missing err=%v", name, err)
		}
		if got := readCounter(t, s, "g1").Count; got != 1 {
			t.Fatalf("%s: count=%d want 1", name, got)
		}
		c, err := s.Put(ctx, "g1", []byte(`{"count":5}`))
		if err != nil {
			t.Fatalf("%s: Put: %v", name, err)
		}
		if c.Version == b.Version {
			t.Fatalf("%s: Put kept version", name)
		}
		if _, err := s.Put(ctx, "nope", nil); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: Put missing err=%v", name, err)
		}
		if _, err := s.Create(ctx, "a0", []byte(`{}`)); err != nil {
			t.Fatalf("%s: Create a0: %v", name, err)
		}
		ids, err := s.List(ctx)
		if err != nil {
			t.Fatalf("%s: List: %v", name, err)
		}
		if len(ids) != 2 || ids[0] != "a0" || ids[1] != "g1" {
			t.Fatalf("%s: List=%v", name, ids)
		}
	}
}

func TestConcurrentMutatesConverge(t *testing.T) {
	ctx := context.Background()
	const workers = 8
	const perWorker = 25
	for name, s := range openStores(t) {
		if _, err := s.Create(ctx, "g", []byte(`{"count":0}`)); err != nil {
			t.Fatalf("%s: Create: %v", name, err)
		}
		var wg sync.WaitGroup
		errs := make(chan error, workers*perWorker)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(who string) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					if _, _, err := Mutate(ctx, s, "g", increment(who), 1000); err != nil {
						errs <- err
					}
				}
			}(fmt.Sprintf("w%d", w))
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("%s: Mutate: %v", name, err)
		}
		d := readCounter(t, s, "g")
		if d.Count != workers*perWorker {
			t.Fatalf("%s: count=%d want %d", name, d.Count, workers*perWorker)
		}
		for w := 0; w < workers; w++ {
			if got := d.By[fmt.Sprintf("w%d", w)]; got != perWorker {
				t.Fatalf("%s: worker w%d applied %d updates", name, w, got)
			}
		}
	}
}

// With a tiny retry budget some callers lose; every caller that did not get an error must be
// reflected in the document.
func TestConcurrentMutatesNeverDropSilently(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	if _, err := s.Create(ctx, "g", []byte(`{"count":0}`)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	const n = 64
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, failed := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(who string) {
			defer wg.Done()
			_, _, err := Mutate(ctx, s, "g", increment(who), 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrConcurrentUpdate):
				failed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(fmt.Sprintf("c%d", i))
	}
	wg.Wait()
	if ok+failed != n {
		t.Fatalf("ok=%d failed=%d", ok, failed)
	}
	if got := readCounter(t, s, "g").Count; got != ok {
		t.Fatalf("count=%d want %d successful callers", got, ok)
	}
}

func TestMutateExhaustsRetries(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		if _, err := s.Create(ctx, "g", []byte(`{"count":0}`)); err != nil {
			t.Fatalf("%s: Create: %v", name, err)
		}
		calls := 0
		// Every transform races with an interfering write, so no conditional write can land.
		fn := func(cur Record) ([]byte, error) {
			calls++
			if _, err := s.Put(ctx, "g", cur.Body); err != nil {
				return nil, err
			}
			return cur.Body, nil
		}
		_, attempts, err := Mutate(ctx, s, "g", fn, 3)
		if !errors.Is(err, ErrConcurrentUpdate) {
			t.Fatalf("%s: err=%v want ErrConcurrentUpdate", name, err)
		}
		if attempts != 4 || calls != 4 {
			t.Fatalf("%s: attempts=%d calls=%d want 4", name, attempts, calls)
		}
	}
}

func TestMutateTransformErrorAbortsWithoutRetry(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	rec, err := s.Create(ctx, "g", []byte(`{"count":0}`))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	bad := errors.New("not enough gold")
	calls := 0
	_, attempts, err := Mutate(ctx, s, "g", func(Record) ([]byte, error) {
		calls++
		return nil, bad
	}, 5)
	if !errors.Is(err, bad) || attempts != 1 || calls != 1 {
		t.Fatalf("err=%v attempts=%d calls=%d", err, attempts, calls)
	}
	cur, _ := s.Get(ctx, "g")
	if cur.Version != rec.Version {
		t.Fatalf("rejected transform changed the document")
	}
	if _, _, err := Mutate(ctx, s, "missing", increment("x"), 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing doc err=%v", err)
	}
}

func TestMutateHonorsCancelledContext(t *testing.T) {
	s := NewMemory()
	if _, err := s.Create(context.Background(), "g", []byte(`{"count":0}`)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Mutate(ctx, s, "g", increment("x"), 5); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	in := counterDoc{Count: 42, By: map[string]int{"a": 1, "b": 41}}
	b, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var out counterDoc
	if err := Decode(b, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Count != 42 || out.By["b"] != 41 || len(out.By) != 2 {
		t.Fatalf("round trip: %+v", out)
	}
	if err := Decode([]byte("not lz4"), &out); err == nil {
		t.Fatalf("expected error for corrupt body")
	}
}
