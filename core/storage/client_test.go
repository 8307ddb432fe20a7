package storage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"backup-verifier/core/storage"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		cfg := storage.Config{
			Endpoint:  "localhost:9000",
			AccessKey: "testkey",
			SecretKey: "testsecret",
			UseSSL:    false,
			Region:    "us-east-1",
		}

		client, err := storage.NewClient(cfg)
		assert.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("EndpointWithHTTP", func(t *testing.T) {
		cfg := storage.Config{
			Endpoint:  "http://localhost:9000",
			AccessKey: "testkey",
			SecretKey: "testsecret",
			UseSSL:    false,
		}

		client, err := storage.NewClient(cfg)
		assert.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("EndpointWithHTTPS", func(t *testing.T) {
		cfg := storage.Config{
			Endpoint:  "https://s3.amazonaws.com",
			AccessKey: "testkey",
			SecretKey: "testsecret",
			UseSSL:    true,
			Region:    "us-east-1",
		}

		client, err := storage.NewClient(cfg)
		assert.NoError(t, err)
		assert.NotNil(t, client)
	})
}

const object = "{\"a\":1}\n"

// fakeS3 serves a single object and answers NoSuchKey for anything else.
func fakeS3(t *testing.T) storage.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/live/a.jsonl" {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
			w.Header().Set("Content-Length", strconv.Itoa(len(object)))
			if r.Method != http.MethodHead {
				_, _ = io.WriteString(w, object)
			}
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
			`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message>`+
			`<Key>missing.jsonl</Key><BucketName>live</BucketName><RequestId>1</RequestId></Error>`)
	}))
	t.Cleanup(srv.Close)

	client, err := storage.NewClient(storage.Config{
		Endpoint:  srv.URL,
		AccessKey: "testkey",
		SecretKey: "testsecret",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	return client
}

func TestClient_GetObject(t *testing.T) {
	client := fakeS3(t)
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		body, err := client.GetObject(ctx, "live", "a.jsonl", minio.GetObjectOptions{})
		require.NoError(t, err)
		defer body.Close()

		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, object, string(data))
	})

	t.Run("MissingKeyFailsOnOpen", func(t *testing.T) {
		body, err := client.GetObject(ctx, "live", "missing.jsonl", minio.GetObjectOptions{})
		require.Error(t, err)
		assert.Nil(t, body)
		assert.Equal(t, "NoSuchKey", minio.ToErrorResponse(err).Code)
	})
}
