package repository

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fakeS3 is a path-style, single-bucket in-memory S3 endpoint.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]http.Header
	puts    int
	failPut bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		f.puts++
		if f.failPut {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.meta[key] = r.Header.Clone()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeS3(t *testing.T) (*fakeS3, *s3.Client) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}, meta: map[string]http.Header{}}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		Credentials:                credentials.NewStaticCredentialsProvider("key", "secret", ""),
		BaseEndpoint:               aws.String(ts.URL),
		UsePathStyle:               true,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
		RetryMaxAttempts:           1,
	})
	return fake, client
}

func TestS3Repository(t *testing.T) {
	ctx := context.Background()

	t.Run("Put Is Idempotent", func(t *testing.T) {
		fake, client := newFakeS3(t)
		repo := NewS3RepositoryWithClient(client, "archive")

		obj := Object{
			Key:         "slack/F1-a.txt",
			Body:        []byte("hello"),
			ContentType: "text/plain",
			Metadata:    map[string]string{"slack-file-id": "F1"},
		}
		for i := 0; i < 2; i++ {
			if err := repo.Put(ctx, obj); err != nil {
				t.Fatalf("Put #%d failed: %v", i+1, err)
			}
		}

		if fake.puts != 2 {
			t.Errorf("expected 2 puts, got %d", fake.puts)
		}
		if len(fake.objects) != 1 {
			t.Fatalf("expected exactly 1 object, got %d", len(fake.objects))
		}
		got, ok := fake.objects["archive/slack/F1-a.txt"]
		if !ok {
			t.Fatalf("object missing, have %v", fake.objects)
		}
		if string(got) != "hello" {
			t.Errorf("expected body hello, got %q", got)
		}
		if v := fake.meta["archive/slack/F1-a.txt"].Get("X-Amz-Meta-Slack-File-Id"); v != "F1" {
			t.Errorf("expected metadata header, got %q", v)
		}
	})

	t.Run("Put Failure", func(t *testing.T) {
		fake, client := newFakeS3(t)
		fake.failPut = true
		repo := NewS3RepositoryWithClient(client, "archive")

		if err := repo.Put(ctx, Object{Key: "k", Body: []byte("x")}); err == nil {
			t.Fatal("expected error on rejected put")
		}
	})

	t.Run("Exists", func(t *testing.T) {
		_, client := newFakeS3(t)
		repo := NewS3RepositoryWithClient(client, "archive")

		ok, err := repo.Exists(ctx, "missing")
		if err != nil || ok {
			t.Errorf("expected missing object, got %v, %v", ok, err)
		}

		if err := repo.Put(ctx, Object{Key: "present", Body: []byte("x")}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		ok, err = repo.Exists(ctx, "present")
		if err != nil || !ok {
			t.Errorf("expected present object, got %v, %v", ok, err)
		}
	})

	t.Run("Location", func(t *testing.T) {
		_, client := newFakeS3(t)
		if got := NewS3RepositoryWithClient(client, "archive").Location(); got != "archive" {
			t.Errorf("expected archive, got %s", got)
		}
	})
}
