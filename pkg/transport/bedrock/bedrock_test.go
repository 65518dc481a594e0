// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package bedrock

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/core/stream"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{
		Region:          "us-west-2",
		Endpoint:        srv.URL,
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		MaxAttempts:     1,
	}, nil)
	require.NoError(t, err)
	return c
}

func chunkMessage(t *testing.T, payload string) []byte {
	t.Helper()
	inner, err := json.Marshal(map[string]string{"bytes": base64.StdEncoding.EncodeToString([]byte(payload))})
	require.NoError(t, err)

	var hs eventstream.Headers
	hs.Set(":message-type", eventstream.StringValue("event"))
	hs.Set(":event-type", eventstream.StringValue("chunk"))
	var buf bytes.Buffer
	require.NoError(t, eventstream.NewEncoder().Encode(&buf, eventstream.Message{Headers: hs, Payload: inner}))
	return buf.Bytes()
}

func TestInvoke(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"outputText":"hi"}]}`))
	})

	out, err := c.Invoke(context.Background(), "amazon.titan-text-express-v1", []byte(`{"inputText":"x"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[{"outputText":"hi"}]}`, string(out))
	assert.Equal(t, "/model/amazon.titan-text-express-v1/invoke", gotPath)
	assert.True(t, strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256"), gotAuth)
	assert.JSONEq(t, `{"inputText":"x"}`, string(gotBody))
}

func TestInvokeThrottled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Amzn-Errortype", "ThrottlingException")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"Too many requests"}`))
	})

	_, err := c.Invoke(context.Background(), "amazon.titan-text-express-v1", []byte(`{}`))
	require.ErrorIs(t, err, errdefs.ErrTransport)
	assert.True(t, errdefs.IsRetryable(err))
}

func TestInvokeValidationNotRetryable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Amzn-Errortype", "ValidationException")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Malformed input request"}`))
	})

	_, err := c.Invoke(context.Background(), "amazon.titan-text-express-v1", []byte(`{}`))
	require.ErrorIs(t, err, errdefs.ErrTransport)
	assert.False(t, errdefs.IsRetryable(err))
}

func TestInvokeStream(t *testing.T) {
	var gotRawPath, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotRawPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/vnd.amazon.eventstream")
		_, _ = w.Write(chunkMessage(t, `{"outputText":"Hello","completionReason":null}`))
		_, _ = w.Write(chunkMessage(t, `{"outputText":" world","completionReason":"FINISH"}`))
	})

	body, framer, err := c.InvokeStream(context.Background(), "us.meta.llama3-8b-instruct-v1:0", []byte(`{}`))
	require.NoError(t, err)
	_, ok := framer.(*stream.EventStreamFramer)
	assert.True(t, ok)
	assert.Equal(t, "/model/us.meta.llama3-8b-instruct-v1%3A0/invoke-with-response-stream", gotRawPath)
	assert.True(t, strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256"))

	r := stream.NewReader(body, framer, func(frame []byte) (*schema.StreamChunk, error) {
		var f struct {
			OutputText       string  `json:"outputText"`
			CompletionReason *string `json:"completionReason"`
		}
		if err := json.Unmarshal(frame, &f); err != nil {
			return nil, err
		}
		c := &schema.StreamChunk{Chunk: f.OutputText}
		if f.CompletionReason != nil {
			c.Done = true
			c.FinishReason = *f.CompletionReason
		}
		return c, nil
	})
	resp, err := r.Collect(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", resp.Text)
	assert.Equal(t, "FINISH", resp.FinishReason)
}

func TestInvokeStreamErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Amzn-Errortype", "AccessDeniedException:http://internal.amazon.com/coral/")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"Message":"You don't have access to the model"}`))
	})

	_, _, err := c.InvokeStream(context.Background(), "anthropic.claude-3-haiku-20240307-v1:0", []byte(`{}`))
	require.ErrorIs(t, err, errdefs.ErrTransport)
	assert.False(t, errdefs.IsRetryable(err))
	assert.Contains(t, err.Error(), "AccessDeniedException")
	assert.Contains(t, err.Error(), "access to the model")
}

func TestInvokeStreamServerErrorRetryable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, _, err := c.InvokeStream(context.Background(), "amazon.titan-text-express-v1", []byte(`{}`))
	require.ErrorIs(t, err, errdefs.ErrTransport)
	assert.True(t, errdefs.IsRetryable(err))
}

func TestNewRejectsPartialCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{AccessKeyID: "only-id"}, nil)
	assert.ErrorIs(t, err, errdefs.ErrConfig)
}

func TestNewTrustsCABundle(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/invoke-with-response-stream") {
			w.Header().Set("Content-Type", "application/vnd.amazon.eventstream")
			_, _ = w.Write(chunkMessage(t, `{"outputText":"ok","completionReason":"FINISH"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"outputText":"ok"}]}`))
	}))
	t.Cleanup(srv.Close)

	bundle := filepath.Join(t.TempDir(), "ca.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(bundle, certPEM, 0o600))
	t.Setenv("AWS_CA_BUNDLE", bundle)

	c, err := New(context.Background(), Options{
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		MaxAttempts:     1,
	}, nil)
	require.NoError(t, err)

	out, err := c.Invoke(context.Background(), "amazon.titan-text-express-v1", []byte(`{}`))
	require.NoError(t, err)
	assert.Contains(t, string(out), "ok")

	body, _, err := c.InvokeStream(context.Background(), "amazon.titan-text-express-v1", []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, body.Close())
}
