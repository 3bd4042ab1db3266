package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestNewS3Store(t *testing.T) {
	local := setupTestStore(t)

	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566", // LocalStack-like endpoint
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	store, err := NewS3Store(local, cfg)
	if err != nil {
		t.Fatalf("NewS3Store() error = %v", err)
	}

	if store.bucket != cfg.Bucket {
		t.Errorf("bucket = %v, want %v", store.bucket, cfg.Bucket)
	}
	if store.region != cfg.Region {
		t.Errorf("region = %v, want %v", store.region, cfg.Region)
	}
}

func TestS3Store_InheritsLocalStore(t *testing.T) {
	local := setupTestStore(t)

	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	store, err := NewS3Store(local, cfg)
	if err != nil {
		t.Fatalf("NewS3Store() error = %v", err)
	}

	ctx := context.Background()

	// Inherited SaveUpload
	path, err := store.SaveUpload(ctx, "test.mp4", bytes.NewReader([]byte("test data")))
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}
	defer func() { _ = os.Remove(path) }()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if string(content) != "test data" {
		t.Errorf("got %q, want %q", string(content), "test data")
	}

	// Inherited RemoveUpload
	if err := store.RemoveUpload(ctx, path); err != nil {
		t.Fatalf("RemoveUpload() error = %v", err)
	}
}

func TestS3Store_Publish_MockServer(t *testing.T) {
	// Create a mock S3 server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT method, got %s", r.Method)
		}

		if !strings.Contains(r.URL.Path, "/final.mp4") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		if string(body) != "finished video" {
			t.Errorf("unexpected body: %s", string(body))
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	local := setupTestStore(t)

	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	store, err := NewS3Store(local, cfg)
	if err != nil {
		t.Fatalf("NewS3Store() error = %v", err)
	}

	ctx := context.Background()

	outPath := store.OutputPath("final.mp4")
	if err := os.WriteFile(outPath, []byte("finished video"), 0600); err != nil {
		t.Fatalf("failed to write output: %v", err)
	}
	defer func() { _ = os.Remove(outPath) }()

	url, err := store.Publish(ctx, "final.mp4")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	expectedURL := "https://test-bucket.s3.us-east-1.amazonaws.com/final.mp4"
	if url != expectedURL {
		t.Errorf("url = %v, want %v", url, expectedURL)
	}
}

func TestS3Store_Publish_MissingOutput(t *testing.T) {
	local := setupTestStore(t)

	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	store, err := NewS3Store(local, cfg)
	if err != nil {
		t.Fatalf("NewS3Store() error = %v", err)
	}

	_, err = store.Publish(context.Background(), "never-written.mp4")
	if err == nil {
		t.Error("expected error for missing output")
	}
}
