package cache

import (
	"testing"
	"time"
)

func TestSetGetFresh(t *testing.T) {
	c, err := New(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set("https://api.example.com/models", &Entry{Body: []byte(`{"data":[]}`), ETag: `"v1"`, StatusCode: 200}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	e, fresh := c.Get("https://api.example.com/models")
	if !fresh || e == nil {
		t.Fatal("expected fresh entry")
	}
	if string(e.Body) != `{"data":[]}` || e.ETag != `"v1"` {
		t.Errorf("entry = %+v", e)
	}

	if _, fresh := c.Get("other"); fresh {
		t.Error("unknown key should miss")
	}
}

func TestExpiredEntryReturnedStale(t *testing.T) {
	c, _ := New(t.TempDir(), time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("k", &Entry{Body: []byte("x"), ETag: "e"})

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	e, fresh := c.Get("k")
	if fresh {
		t.Error("entry should be stale")
	}
	if e == nil || e.ETag != "e" {
		t.Error("stale entry should still be returned for conditional fetch")
	}
}

func TestPurge(t *testing.T) {
	c, _ := New(t.TempDir(), time.Minute)
	c.Set("a", &Entry{Body: []byte("1")})
	c.Set("b", &Entry{Body: []byte("2")})

	c.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	n, err := c.Purge(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("purged %d, want 2", n)
	}
	if e, _ := c.Get("a"); e != nil {
		t.Error("purged entry still readable")
	}
}
