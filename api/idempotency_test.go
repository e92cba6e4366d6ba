package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"

	"lini/storage"
)

func newDeduper(t *testing.T) (*RedisDeduper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return NewRedisDeduper(rc, time.Hour), mr
}

func TestRedisDeduper(t *testing.T) {
	d, mr := newDeduper(t)
	ctx := context.Background()
	first := CommandKey{UserID: "alice", BoardID: 4, RequestID: "req-1"}

	added, err := d.Add(ctx, first, "/api/boards/:board/list/create/")
	if err != nil || !added {
		t.Fatalf("expected first add to succeed, got %v %v", added, err)
	}
	if ttl := mr.TTL("cmd:alice:4:req-1"); ttl != time.Hour {
		t.Fatalf("expected ttl, got %v", ttl)
	}
	if got, _ := mr.Get("cmd:alice:4:req-1"); got != "/api/boards/:board/list/create/" {
		t.Fatalf("expected route to be recorded, got %q", got)
	}
	if added, _ := d.Add(ctx, first, ""); added {
		t.Fatalf("expected duplicate to be rejected")
	}
	if added, _ := d.Add(ctx, CommandKey{UserID: "bob", BoardID: 4, RequestID: "req-1"}, ""); !added {
		t.Fatalf("ids are scoped per user")
	}
	if added, _ := d.Add(ctx, CommandKey{UserID: "alice", BoardID: 5, RequestID: "req-1"}, ""); !added {
		t.Fatalf("ids are scoped per board")
	}
	if err := d.Remove(ctx, first); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if added, _ := d.Add(ctx, first, ""); !added {
		t.Fatalf("expected removed id to be accepted again")
	}
}

func TestDuplicateCommandsAreDropped(t *testing.T) {
	d, _ := newDeduper(t)
	logger, _ := test.NewNullLogger()
	store := storage.New(storage.NewMemory())
	e := echo.New()
	Register(e, store, headerAuth{}, d, logger)

	b, err := store.CreateBoard(context.Background(), "alice", "x")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	send := func(requestID, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, boardPath(b, "list/create/"), strings.NewReader(body))
		req.Header.Set(echo.HeaderAuthorization, "Bearer alice")
		req.Header.Set(HeaderRequestID, requestID)
		req.AddCookie(&http.Cookie{Name: CSRFCookie, Value: "tok"})
		req.Header.Set(HeaderCSRFToken, "tok")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	expect(t, send("req-1", `{"title":"A"}`), http.StatusOK, "")
	expect(t, send("req-1", `{"title":"A"}`), http.StatusConflict, "duplicate_command")

	// A rejected command does not burn its id.
	expect(t, send("req-2", `not json`), http.StatusBadRequest, "bad_json")
	expect(t, send("req-2", `{"title":"B"}`), http.StatusOK, "")

	got, _ := store.Board(context.Background(), b.ID)
	if n := len(got.Lists); n != 5 {
		t.Fatalf("expected two new lists, got %d lists", n)
	}
	if last := got.Lists[4].Title; last != "B" {
		t.Fatalf("unexpected last list %q", last)
	}
}
