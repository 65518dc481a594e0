// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package bedrock is the Amazon Bedrock Runtime transport.
//
// Synchronous calls go through the bedrockruntime SDK client. Streamed calls
// are sent as SigV4-signed HTTPS requests so the raw eventstream body can be
// handed to the stream decoder unchanged.
package bedrock

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/tidwall/gjson"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/stream"
	"github.com/leseb/bedrock-gw/pkg/transport"
)

const (
	signingName     = "bedrock"
	defaultRegion   = "us-east-1"
	maxErrorBodyLen = 64 * 1024
)

// retryableCodes are service error codes worth retrying with backoff.
var retryableCodes = map[string]bool{
	"ThrottlingException":         true,
	"ServiceUnavailableException": true,
	"InternalServerException":     true,
	"ModelNotReadyException":      true,
	"ModelTimeoutException":       true,
}

// Options configures the transport. Empty credentials fall back to the
// default AWS credential chain.
type Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Timeout         time.Duration
	// MaxAttempts bounds SDK retries of synchronous calls. Zero keeps the
	// SDK default.
	MaxAttempts int
	// HTTPClient overrides the default buildable client. A custom client
	// cannot take AWS_CA_BUNDLE.
	HTTPClient aws.HTTPClient
}

// Client implements transport.Transport against Bedrock Runtime.
type Client struct {
	runtime  *bedrockruntime.Client
	http     aws.HTTPClient
	creds    aws.CredentialsProvider
	signer   *v4.Signer
	region   string
	endpoint string
	logger   *slog.Logger
}

var _ transport.Transport = (*Client)(nil)

// New loads AWS configuration and builds the client.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	region := opts.Region
	if region == "" {
		region = defaultRegion
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = awshttp.NewBuildableClient().WithTimeout(opts.Timeout)
	}

	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(httpClient),
	}
	if opts.AccessKeyID != "" || opts.SecretAccessKey != "" {
		if opts.AccessKeyID == "" || opts.SecretAccessKey == "" {
			return nil, errdefs.Configf("bedrock: access key id and secret access key must be set together")
		}
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindConfig, err, "bedrock: load aws config")
	}

	endpoint := strings.TrimRight(opts.Endpoint, "/")
	runtime := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if opts.MaxAttempts > 0 {
			o.RetryMaxAttempts = opts.MaxAttempts
		}
	})
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", region)
	}

	logger.Info("Initialized Bedrock transport", "region", region, "endpoint", endpoint)

	return &Client{
		runtime:  runtime,
		http:     cfg.HTTPClient,
		creds:    cfg.Credentials,
		signer:   v4.NewSigner(),
		region:   region,
		endpoint: endpoint,
		logger:   logger,
	}, nil
}

// Invoke calls InvokeModel and returns the raw response body.
func (c *Client) Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	start := time.Now()
	out, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, classify(err, "invoke %s", modelID)
	}
	c.logger.Debug("Invoked model", "model", modelID, "bytes", len(out.Body), "duration", time.Since(start))
	return out.Body, nil
}

// InvokeStream posts to invoke-with-response-stream and returns the open
// eventstream body.
func (c *Client) InvokeStream(ctx context.Context, modelID string, body []byte) (io.ReadCloser, stream.Framer, error) {
	req, err := c.streamRequest(ctx, modelID, body)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, classify(err, "invoke stream %s", modelID)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, nil, statusError(resp, modelID)
	}
	c.logger.Debug("Opened model stream", "model", modelID)
	return resp.Body, stream.NewEventStreamFramer(), nil
}

func (c *Client) streamRequest(ctx context.Context, modelID string, body []byte) (*http.Request, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindConfig, err, "bedrock: endpoint %q", c.endpoint)
	}
	// Model ids and ARNs contain ':' and '/', which must reach the service
	// percent-encoded.
	escaped := strings.ReplaceAll(url.PathEscape(modelID), ":", "%3A")
	rawBase := strings.TrimRight(u.EscapedPath(), "/")
	u.Path = strings.TrimRight(u.Path, "/") + "/model/" + modelID + "/invoke-with-response-stream"
	u.RawPath = rawBase + "/model/" + escaped + "/invoke-with-response-stream"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindTransport, err, "build stream request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Amzn-Bedrock-Accept", "application/json")

	creds, err := c.creds.Retrieve(ctx)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindConfig, err, "bedrock: retrieve credentials")
	}
	sum := sha256.Sum256(body)
	if err := c.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), signingName, c.region, time.Now()); err != nil {
		return nil, errdefs.Wrap(errdefs.KindTransport, err, "sign stream request")
	}
	return req, nil
}

// statusError turns a non-2xx streaming response into a transport error
// carrying the service message.
func statusError(resp *http.Response, modelID string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	code, _, _ := strings.Cut(resp.Header.Get("X-Amzn-Errortype"), ":")
	msg := gjson.GetBytes(raw, "message").String()
	if msg == "" {
		msg = gjson.GetBytes(raw, "Message").String()
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	return &errdefs.Error{
		Kind:      errdefs.KindTransport,
		Msg:       fmt.Sprintf("invoke stream %s: status %d %s: %s", modelID, resp.StatusCode, code, msg),
		Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 || retryableCodes[code],
	}
}

// classify maps SDK and network failures to transport errors.
func classify(err error, format string, args ...any) error {
	e := &errdefs.Error{Kind: errdefs.KindTransport, Msg: fmt.Sprintf(format, args...), Err: err}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return e
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && retryableCodes[apiErr.ErrorCode()] {
		e.Retryable = true
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		if status == http.StatusTooManyRequests || status >= 500 {
			e.Retryable = true
		}
	}
	return e
}
