package blob_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"pharmxchain/internal/blob"
)

func stores(t *testing.T) map[string]blob.Store {
	t.Helper()
	fsStore, err := blob.NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("filesystem store: %v", err)
	}
	return map[string]blob.Store{
		"memory": blob.NewMemory(),
		"fs":     fsStore,
		"s3":     blob.NewMockS3ForTests(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			payload := []byte(`{"report":"custody"}`)

			info, err := store.Put(ctx, "reports/med-1/job-1.json", bytes.NewReader(payload), blob.PutOptions{
				ContentType: "application/json",
				Metadata:    map[string]string{"medicine_id": "med-1"},
			})
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if info.Size != int64(len(payload)) {
				t.Fatalf("size = %d, want %d", info.Size, len(payload))
			}

			got, rc, err := store.Get(ctx, "reports/med-1/job-1.json")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			data, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !bytes.Equal(data, payload) {
				t.Fatalf("payload = %q", data)
			}
			if got.Size != int64(len(payload)) {
				t.Fatalf("get size = %d", got.Size)
			}

			head, err := store.Head(ctx, "reports/med-1/job-1.json")
			if err != nil {
				t.Fatalf("head: %v", err)
			}
			if head.Size != int64(len(payload)) {
				t.Fatalf("head size = %d", head.Size)
			}
		})
	}
}

func TestPutIsCreateOnly(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Put(ctx, "k", strings.NewReader("first"), blob.PutOptions{}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := store.Put(ctx, "k", strings.NewReader("second"), blob.PutOptions{}); err == nil {
				t.Fatal("overwriting an existing key must fail")
			}
			_, rc, err := store.Get(ctx, "k")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			data, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(data) != "first" {
				t.Fatalf("blob mutated: %q", data)
			}
		})
	}
}

func TestDeleteReportsAbsence(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Put(ctx, "gone", strings.NewReader("x"), blob.PutOptions{}); err != nil {
				t.Fatalf("put: %v", err)
			}
			deleted, err := store.Delete(ctx, "gone")
			if err != nil || !deleted {
				t.Fatalf("delete = %v, %v", deleted, err)
			}
			deleted, err = store.Delete(ctx, "gone")
			if err != nil || deleted {
				t.Fatalf("second delete = %v, %v", deleted, err)
			}
			if _, _, err := store.Get(ctx, "gone"); err == nil {
				t.Fatal("deleted blob still readable")
			}
		})
	}
}

func TestListByPrefixOrdered(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, key := range []string{"reports/b.json", "reports/a.json", "other/c.json"} {
				if _, err := store.Put(ctx, key, strings.NewReader("x"), blob.PutOptions{}); err != nil {
					t.Fatalf("put %s: %v", key, err)
				}
			}
			infos, err := store.List(ctx, "reports/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(infos) != 2 || infos[0].Key != "reports/a.json" || infos[1].Key != "reports/b.json" {
				t.Fatalf("list = %+v", infos)
			}
		})
	}
}

func TestFilesystemKeySanitization(t *testing.T) {
	store, err := blob.NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("filesystem store: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"", "../escape", "/abs/path", "a/../../b"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), blob.PutOptions{}); err == nil {
			t.Fatalf("key %q accepted", key)
		}
	}
}

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	t.Setenv("PHARMX_BLOB_DRIVER", "memory")
	store, err := blob.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != blob.DriverMemory {
		t.Fatalf("driver = %s", store.Driver())
	}

	t.Setenv("PHARMX_BLOB_DRIVER", "fs")
	t.Setenv("PHARMX_BLOB_FS_ROOT", t.TempDir())
	store, err = blob.Open(context.Background())
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if store.Driver() != blob.DriverFilesystem {
		t.Fatalf("driver = %s", store.Driver())
	}

	t.Setenv("PHARMX_BLOB_DRIVER", "tape")
	if _, err := blob.Open(context.Background()); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestMemoryPresignUnsupported(t *testing.T) {
	store := blob.NewMemory()
	_, err := store.PresignURL(context.Background(), "k", blob.SignedURLOptions{})
	if !errors.Is(err, blob.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
