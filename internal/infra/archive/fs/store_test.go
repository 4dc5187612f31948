package fs

import (
	"context"
	"io"
	"strings"
	"testing"

	"mescore/internal/infra/archive/core"
)

func TestPutGetHeadDeleteList(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	info, err := store.Put(ctx, "snapshots/a.json.gz", strings.NewReader("payload"), core.PutOptions{
		ContentType: "application/json+gzip",
		Metadata:    map[string]string{"source": "test"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len("payload")) || info.ETag == "" {
		t.Fatalf("info: %+v", info)
	}

	if _, err := store.Put(ctx, "snapshots/a.json.gz", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("overwrite accepted")
	}

	got, body, err := store.Get(ctx, "snapshots/a.json.gz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, err := io.ReadAll(body)
	body.Close()
	if err != nil || string(data) != "payload" {
		t.Fatalf("payload: %q err %v", data, err)
	}
	if got.Metadata["source"] != "test" {
		t.Fatalf("metadata: %+v", got.Metadata)
	}

	head, err := store.Head(ctx, "snapshots/a.json.gz")
	if err != nil || head.ETag != info.ETag {
		t.Fatalf("head: %+v err %v", head, err)
	}

	if _, err := store.Put(ctx, "snapshots/b.json.gz", strings.NewReader("other"), core.PutOptions{}); err != nil {
		t.Fatalf("put b: %v", err)
	}
	listed, err := store.List(ctx, "snapshots/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 || listed[0].Key != "snapshots/a.json.gz" {
		t.Fatalf("list: %+v", listed)
	}

	deleted, err := store.Delete(ctx, "snapshots/a.json.gz")
	if err != nil || !deleted {
		t.Fatalf("delete: %v %v", deleted, err)
	}
	deleted, err = store.Delete(ctx, "snapshots/a.json.gz")
	if err != nil || deleted {
		t.Fatalf("second delete: %v %v", deleted, err)
	}
}

func TestKeySanitization(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "../escape", "/abs"} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("key %q accepted", key)
		}
	}
}
