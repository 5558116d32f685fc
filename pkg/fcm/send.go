package fcm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tinywideclouds/go-fcm-sender/internal/metrics"
	"github.com/tinywideclouds/go-fcm-sender/internal/request"
	"github.com/tinywideclouds/go-fcm-sender/pkg/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

const tracerName = "github.com/tinywideclouds/go-fcm-sender/pkg/fcm"

// Send posts msg to FCM once. It never retries; check Error.Retryable and
// Error.RetryAfter to schedule a retry.
func (c *Client) Send(ctx context.Context, msg *message.Message) (resp *Response, err error) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "fcm.Send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("fcm.project_id", c.projectID)),
	)
	defer func() {
		c.finish(span, start, resp, err)
	}()
	if msg != nil {
		span.SetAttributes(attribute.String("fcm.target_kind", msg.Target.Kind().String()))
	}

	req, err := request.Build(c.projectID, c.endpoint, msg, c.dryRun)
	if err != nil {
		return nil, NewError(KindSerialization, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	r, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(tok.AccessToken).
		SetBody(req.Body).
		Post(req.URL)
	if err != nil {
		return nil, NewError(KindTransport, transportCause(ctx, err))
	}

	if r.StatusCode() == http.StatusOK {
		return decodeSuccess(r.StatusCode(), r.Body())
	}
	return nil, decodeError(r.StatusCode(), r.Header(), r.Body())
}

type tokenResult struct {
	tok *oauth2.Token
	err error
}

// token fetches an access token, giving up when ctx is done. An abandoned
// fetch keeps running and its result still lands in the reusing source.
func (c *Client) token(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(KindTransport, err)
	}
	done := make(chan tokenResult, 1)
	go func() {
		tok, err := c.tokens.Token()
		done <- tokenResult{tok: tok, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, tokenError(r.err)
		}
		return r.tok, nil
	case <-ctx.Done():
		return nil, NewError(KindTransport, ctx.Err())
	}
}

// tokenError classifies a token source failure. The key is parsed when the
// client is built, so anything without an HTTP response is a transport fault.
func tokenError(err error) *Error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return NewError(KindTransport, err)
	}
	e := NewError(KindCredentials, err)
	e.StatusCode = re.Response.StatusCode
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError {
		e.Kind = KindServer
	}
	return e
}

// transportCause makes sure a context failure stays visible to errors.Is.
func transportCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return errors.Join(ctxErr, err)
	}
	return err
}

func (c *Client) finish(span trace.Span, start time.Time, resp *Response, err error) {
	defer span.End()
	elapsed := time.Since(start)

	if err == nil {
		metrics.ObserveSend(metrics.OutcomeSuccess, elapsed)
		span.SetAttributes(attribute.String("fcm.message_name", resp.Name))
		span.SetStatus(codes.Ok, "")
		c.logger.Debug("Message sent", "name", resp.Name, "duration", elapsed)
		return
	}

	outcome := "unknown"
	var fe *Error
	if errors.As(err, &fe) {
		outcome = fe.Kind.String()
		span.SetAttributes(
			attribute.String("fcm.error_kind", outcome),
			attribute.Int("http.status_code", fe.StatusCode),
		)
	}
	metrics.ObserveSend(outcome, elapsed)
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)

	if fe != nil && fe.Retryable() {
		c.logger.Warn("FCM send failed (retryable)", "kind", outcome, "err", err, "retry_after", fe.RetryAfter)
		return
	}
	c.logger.Error("FCM send failed", "kind", outcome, "err", err)
}
