package persist

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	ferrors "github.com/AGES-Pro-Mata/frontend-sub002/internal/errors"
	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/features/filters"
)

// testStorage runs the behavior every Storage must share.
func testStorage(t *testing.T, storage Storage) {
	t.Helper()
	ctx := context.Background()
	data := []byte(`{"version":1,"key":"users"}`)

	t.Run("Save", func(t *testing.T) {
		if err := storage.Save(ctx, "users", data); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	})

	t.Run("Load", func(t *testing.T) {
		loaded, err := storage.Load(ctx, "users")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if !bytes.Equal(loaded, data) {
			t.Errorf("Load returned wrong data: got %s, want %s", loaded, data)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		next := []byte(`{"version":1,"key":"users","values":{"q":"ana"}}`)
		if err := storage.Save(ctx, "users", next); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		loaded, err := storage.Load(ctx, "users")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if !bytes.Equal(loaded, next) {
			t.Errorf("Expected overwritten record, got %s", loaded)
		}
	})

	t.Run("LoadNonExistent", func(t *testing.T) {
		loaded, err := storage.Load(ctx, "non-existent")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded != nil {
			t.Error("Load returned data for non-existent key")
		}
	})

	t.Run("KeyWithSlash", func(t *testing.T) {
		if err := storage.Save(ctx, "admin/users", data); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		loaded, err := storage.Load(ctx, "admin/users")
		if err != nil || !bytes.Equal(loaded, data) {
			t.Errorf("Expected record for admin/users, got %s (err %v)", loaded, err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := storage.Delete(ctx, "users"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		loaded, err := storage.Load(ctx, "users")
		if err != nil {
			t.Fatalf("Load after Delete failed: %v", err)
		}
		if loaded != nil {
			t.Error("Record still exists after Delete")
		}
	})

	t.Run("DeleteNonExistent", func(t *testing.T) {
		if err := storage.Delete(ctx, "non-existent"); err != nil {
			t.Errorf("Delete of missing key should not fail: %v", err)
		}
	})

	t.Run("Closed", func(t *testing.T) {
		if err := storage.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		err := storage.Save(ctx, "users", data)
		if !ferrors.HasCode(err, "S001") {
			t.Errorf("Expected S001 after Close, got %v", err)
		}
	})
}

func TestMemoryStorage(t *testing.T) {
	storage := NewMemoryStorage()
	testStorage(t, storage)
}

func TestMemoryStorageCopies(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	data := []byte("abc")
	_ = storage.Save(ctx, "k", data)
	data[0] = 'x'

	loaded, _ := storage.Load(ctx, "k")
	if string(loaded) != "abc" {
		t.Errorf("Expected stored copy abc, got %s", loaded)
	}
	loaded[1] = 'x'
	again, _ := storage.Load(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("Expected Load to return a copy, got %s", again)
	}
	if storage.Len() != 1 {
		t.Errorf("Expected 1 record, got %d", storage.Len())
	}
}

func TestSQLiteStorage(t *testing.T) {
	storage, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "filters.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	testStorage(t, storage)
}

func TestSQLStoragePlaceholders(t *testing.T) {
	pg := NewSQLStorage(nil)
	if got := pg.placeholder(2); got != "$2" {
		t.Errorf("Expected $2, got %s", got)
	}
	lite := NewSQLStorage(nil, WithSQLDialect(DialectSQLite))
	if got := lite.placeholder(2); got != "?" {
		t.Errorf("Expected ?, got %s", got)
	}
}

// fakeS3 is an in-memory S3API.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []*s3.PutObjectInput
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Storage(t *testing.T) {
	fake := newFakeS3()
	storage := NewS3Storage(fake, "promata", "filters/")
	testStorage(t, storage)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.puts) == 0 {
		t.Fatal("Expected PutObject calls")
	}
	for _, in := range fake.puts {
		if !strings.HasPrefix(*in.Key, "filters/") || !strings.HasSuffix(*in.Key, ".json") {
			t.Errorf("Unexpected object key %s", *in.Key)
		}
		if *in.ContentType != "application/json" {
			t.Errorf("Expected application/json, got %s", *in.ContentType)
		}
	}
	if _, ok := fake.objects["promata/filters/admin%2Fusers.json"]; !ok {
		t.Error("Expected the slash in admin/users to be escaped in the object key")
	}
}

func TestRecordEncoding(t *testing.T) {
	st := filters.State{
		Values:  filters.NewValues(filters.F("name", "ana"), filters.F("page", 2)),
		Filters: filters.NewValues(filters.F("name", "ana")),
		Query:   "name=ana",
	}
	savedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	data, err := EncodeRecord("users", st, savedAt)
	if err != nil {
		t.Fatalf("EncodeRecord failed: %v", err)
	}
	if !strings.Contains(string(data), `"values":[{"k":"name","v":"ana"},{"k":"page","v":2}]`) {
		t.Errorf("Expected ordered values in record, got %s", data)
	}
	if !strings.Contains(string(data), `"query":"name=ana"`) {
		t.Errorf("Expected committed query in record, got %s", data)
	}

	rec, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	if rec.Version != RecordVersion || rec.Key != "users" || !rec.SavedAt.Equal(savedAt) {
		t.Errorf("Unexpected record header: %+v", rec)
	}
	if got := filters.Encode(rec.Filters); got != "name=ana" {
		t.Errorf("Expected name=ana, got %s", got)
	}
	if got := filters.Encode(rec.Values); got != "name=ana&page=2" {
		t.Errorf("Expected name=ana&page=2, got %s", got)
	}

	t.Run("UndefinedAndTime", func(t *testing.T) {
		st := filters.State{
			Filters: filters.NewValues(
				filters.F("status", filters.Undefined),
				filters.F("from", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
			),
		}
		data, err := EncodeRecord("events", st, savedAt)
		if err != nil {
			t.Fatalf("EncodeRecord failed: %v", err)
		}
		rec, err := DecodeRecord(data)
		if err != nil {
			t.Fatalf("DecodeRecord failed: %v", err)
		}
		want := "status=undefined&from=2024-01-02T03%3A04%3A05.000Z"
		if got := filters.Encode(rec.Filters); got != want {
			t.Errorf("Expected %s, got %s", want, got)
		}
	})

	t.Run("Version1", func(t *testing.T) {
		rec, err := DecodeRecord([]byte(`{"version":1,"key":"users","values":{"name":"ana","page":2},"filters":{"name":"ana"}}`))
		if err != nil {
			t.Fatalf("DecodeRecord failed: %v", err)
		}
		if got := filters.Encode(rec.Values); got != "name=ana&page=2" {
			t.Errorf("Expected name=ana&page=2, got %s", got)
		}
		if got := rec.State().Query; got != "name=ana" {
			t.Errorf("Expected query recomputed as name=ana, got %s", got)
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := DecodeRecord([]byte("not json"))
		if !ferrors.HasCode(err, "S003") {
			t.Errorf("Expected S003, got %v", err)
		}
	})

	t.Run("FutureVersion", func(t *testing.T) {
		_, err := DecodeRecord([]byte(`{"version":99,"key":"users"}`))
		if !ferrors.HasCode(err, "S007") {
			t.Errorf("Expected S007, got %v", err)
		}
	})
}
