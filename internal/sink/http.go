package sink

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"eventforge/internal/config"
	"eventforge/internal/dispatch"
	"eventforge/internal/event"
)

// HTTPSink POSTs each rendered event payload to a webhook URL. One
// Deliver is one request; retries are the dispatcher's job, so the
// resty client's own retrying stays disabled.
type HTTPSink struct {
	client  *resty.Client
	url     string
	headers map[string]string
}

func newHTTPSink(cfg config.OutputConfig, _ config.Env) (dispatch.Sink, error) {
	if cfg.URL == "" {
		return nil, &config.ConfigError{Field: "outputs.url", Msg: "http sink requires a url"}
	}
	return NewHTTPSink(cfg.URL, cfg.Headers), nil
}

// NewHTTPSink returns a webhook sink for the given URL.
func NewHTTPSink(url string, headers map[string]string) *HTTPSink {
	client := resty.New().SetRetryCount(0)
	return &HTTPSink{client: client, url: url, headers: headers}
}

// Deliver implements dispatch.Sink.
func (s *HTTPSink) Deliver(ctx context.Context, ev event.RenderedEvent) error {
	req := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(ev.Payload)
	for k, v := range s.headers {
		req.SetHeader(k, v)
	}
	resp, err := req.Post(s.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("http sink: %s returned %s", s.url, resp.Status())
	}
	return nil
}

// Close implements dispatch.Sink.
func (s *HTTPSink) Close() error { return nil }
