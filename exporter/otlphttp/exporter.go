// Package otlphttp exports metric snapshots to an OpenTelemetry collector
// using OTLP over HTTP with protobuf encoding.
package otlphttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	colmetricpb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricpb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/protobuf/proto"

	metrics "github.com/ygrebnov/pushmetrics"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultScopeName = "github.com/ygrebnov/pushmetrics"
	sdkName          = "pushmetrics"

	contentTypeProtobuf = "application/x-protobuf"
	// maxResponseBody caps how much of a response is read.
	maxResponseBody = 64 << 10
)

var (
	// ErrInvalidEndpoint is wrapped by every error ValidateEndpoint returns.
	ErrInvalidEndpoint = errors.New("otlphttp: invalid endpoint")
	// ErrPartialSuccess is returned when the collector rejects some data points.
	ErrPartialSuccess = errors.New("otlphttp: collector rejected data points")
)

// StatusError is returned when the collector answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("otlphttp: unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("otlphttp: unexpected status %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Options configures an Exporter.
type Options struct {
	// Endpoint is the full URL metrics are POSTed to,
	// e.g. http://127.0.0.1:4318/v1/metrics.
	Endpoint string
	// Headers are added to every request.
	Headers map[string]string
	// Timeout bounds a single request when the context has no earlier deadline.
	Timeout time.Duration
	// HTTPClient overrides the pooled client built by default.
	HTTPClient *http.Client

	ServiceName string
	// InstanceID defaults to a random UUID.
	InstanceID         string
	ResourceAttributes map[string]string
	ScopeName          string
	ScopeVersion       string

	Logger hclog.Logger
}

// Exporter sends snapshots to a single OTLP/HTTP endpoint. It never retries;
// retry policy belongs to the caller.
type Exporter struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
	resource *resourcepb.Resource
	scope    *commonpb.InstrumentationScope
	logger   hclog.Logger
}

// New validates opts and returns an Exporter.
func New(opts Options) (*Exporter, error) {
	if err := ValidateEndpoint(opts.Endpoint); err != nil {
		return nil, err
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{
			Transport: cleanhttp.DefaultPooledTransport(),
			Timeout:   timeout,
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	scopeName := opts.ScopeName
	if scopeName == "" {
		scopeName = defaultScopeName
	}

	headers := make(map[string]string, len(opts.Headers)+1)
	for k, v := range opts.Headers {
		headers[k] = v
	}
	headers["Content-Type"] = contentTypeProtobuf

	return &Exporter{
		endpoint: opts.Endpoint,
		headers:  headers,
		client:   client,
		resource: &resourcepb.Resource{Attributes: keyValuesToOTLP(resourceAttributes(opts))},
		scope:    &commonpb.InstrumentationScope{Name: scopeName, Version: opts.ScopeVersion},
		logger:   logger.Named("otlphttp"),
	}, nil
}

// ValidateEndpoint checks that endpoint is an absolute http or https URL.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEndpoint)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q must use http or https", ErrInvalidEndpoint, endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidEndpoint, endpoint)
	}
	return nil
}

func resourceAttributes(opts Options) []attribute.KeyValue {
	instanceID := opts.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	// user attributes first so the identity attributes below win
	keys := make([]string, 0, len(opts.ResourceAttributes))
	for k := range opts.ResourceAttributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]attribute.KeyValue, 0, len(keys)+5)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, opts.ResourceAttributes[k]))
	}

	attrs = append(attrs,
		semconv.TelemetrySDKName(sdkName),
		semconv.TelemetrySDKLanguageGo,
		semconv.ServiceInstanceID(instanceID),
	)
	if opts.ServiceName != "" {
		attrs = append(attrs, semconv.ServiceName(opts.ServiceName))
	}
	return attrs
}

// Export encodes snap as an OTLP ExportMetricsServiceRequest and POSTs it.
// An empty snapshot is not sent.
func (e *Exporter) Export(ctx context.Context, snap metrics.Snapshot) error {
	ms := snapshotToOTLP(snap)
	if len(ms) == 0 {
		return nil
	}

	req := &colmetricpb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricpb.ResourceMetrics{{
			Resource: e.resource,
			ScopeMetrics: []*metricpb.ScopeMetrics{{
				Scope:   e.scope,
				Metrics: ms,
			}},
		}},
	}
	body, err := proto.Marshal(req)
	if err != nil {
		return fmt.Errorf("otlphttp: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("otlphttp: build request: %w", err)
	}
	for k, v := range e.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("otlphttp: post metrics: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("otlphttp: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}

	if len(respBody) != 0 && resp.Header.Get("Content-Type") == contentTypeProtobuf {
		var out colmetricpb.ExportMetricsServiceResponse
		if err := proto.Unmarshal(respBody, &out); err != nil {
			return fmt.Errorf("otlphttp: decode response: %w", err)
		}
		if ps := out.GetPartialSuccess(); ps != nil {
			if ps.GetRejectedDataPoints() > 0 {
				return fmt.Errorf("%w: %d rejected: %s", ErrPartialSuccess, ps.GetRejectedDataPoints(), ps.GetErrorMessage())
			}
			if msg := ps.GetErrorMessage(); msg != "" {
				e.logger.Warn("collector accepted metrics with a warning", "message", msg)
			}
		}
	}

	e.logger.Trace("exported metrics", "metrics", len(ms), "points", snap.Len(), "bytes", len(body))
	return nil
}
