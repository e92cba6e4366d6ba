// Package command sends board mutations to the persistence service.
package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lini/domain"
)

const (
	// HeaderCSRFToken carries the anti-forgery token.
	HeaderCSRFToken = "X-CSRFToken"
	// HeaderRequestID identifies one send; the service drops repeats.
	HeaderRequestID = "X-Request-ID"

	tracerName = "lini/command"
)

var emptyObject = []byte("{}")

// Sender is the contract the controller and reorder engine depend on.
type Sender interface {
	Send(ctx context.Context, endpoint string, payload any) (sonic.NoCopyRawMessage, error)
}

// Fetcher reads a resource without mutating it.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) ([]byte, error)
}

// Channel is an HTTP command channel. Every call is sent once; there are no
// retries and no client-side timeout beyond the caller's context.
type Channel struct {
	HTTP   *http.Client
	Tokens TokenSource
	Bearer string
	Logger *log.Logger
}

// New creates a Channel that reads its anti-forgery token from tokens.
func New(tokens TokenSource, bearer string, logger *log.Logger) *Channel {
	if tokens == nil {
		tokens = StaticToken("")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	// The jar carries the anti-forgery cookie issued with each snapshot.
	jar, _ := cookiejar.New(nil)
	return &Channel{
		HTTP:   &http.Client{Jar: jar},
		Tokens: tokens,
		Bearer: bearer,
		Logger: logger,
	}
}

// Send posts payload as JSON to endpoint. A nil payload is sent as an empty
// object. Non-2xx responses fail with *domain.RemoteError carrying the raw
// body; 2xx responses return the JSON body.
func (c *Channel) Send(ctx context.Context, endpoint string, payload any) (sonic.NoCopyRawMessage, error) {
	ctx, span := c.startSpan(ctx, "command.send", endpoint)
	defer span.End()

	body := emptyObject
	if payload != nil {
		var err error
		body, err = sonic.Marshal(payload)
		if err != nil {
			c.fail(span, err)
			return nil, fmt.Errorf("encode %s: %w", endpoint, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		c.fail(span, err)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderCSRFToken, c.Tokens.Token())

	data, err := c.do(req, span)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return sonic.NoCopyRawMessage(emptyObject), nil
	}
	if !sonic.ConfigStd.Valid(data) {
		err := fmt.Errorf("%s: response is not valid JSON", endpoint)
		c.fail(span, err)
		return nil, err
	}
	return sonic.NoCopyRawMessage(data), nil
}

// Fetch issues a GET and returns the body exactly as received.
func (c *Channel) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	ctx, span := c.startSpan(ctx, "command.fetch", endpoint)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.fail(span, err)
		return nil, err
	}
	return c.do(req, span)
}

func (c *Channel) do(req *http.Request, span trace.Span) ([]byte, error) {
	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	span.SetAttributes(attribute.String("request.id", requestID))

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.fail(span, err)
		c.Logger.WithFields(log.Fields{
			"endpoint":   req.URL.String(),
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("command.transport.failed")
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.fail(span, err)
		return nil, fmt.Errorf("read %s: %w", req.URL, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	fields := log.Fields{
		"endpoint":    req.URL.String(),
		"method":      req.Method,
		"status":      resp.StatusCode,
		"request_id":  requestID,
		"duration_ms": float64(time.Since(start)) / float64(time.Millisecond),
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		remote := &domain.RemoteError{Endpoint: req.URL.String(), Status: resp.StatusCode, Body: string(data)}
		c.fail(span, remote)
		fields["body"] = string(data)
		c.Logger.WithFields(fields).Warn("command.remote.failed")
		return nil, remote
	}
	span.SetStatus(codes.Ok, "")
	c.Logger.WithFields(fields).Debug("command.completed")
	return data, nil
}

func (c *Channel) startSpan(ctx context.Context, name, endpoint string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attribute.String("command.endpoint", endpoint)))
}

func (c *Channel) fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Decode unmarshals a command result.
func Decode(raw sonic.NoCopyRawMessage, v any) error {
	return sonic.Unmarshal(raw, v)
}
