package tracing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/azargarov/taskpool"

// Attribute keys set on scheduler spans.
const (
	KeyScheduler    = attribute.Key("taskpool.scheduler")
	KeyTaskID       = attribute.Key("taskpool.task.id")
	KeyTaskPriority = attribute.Key("taskpool.task.priority")
	KeyTaskStatus   = attribute.Key("taskpool.task.status")
	KeyWorkerID     = attribute.Key("taskpool.worker.id")
	KeyPreempted    = attribute.Key("taskpool.preempted")
)

// ErrAlreadyInitialized is returned by Init while a provider is installed.
var ErrAlreadyInitialized = errors.New("tracing: provider already installed")

var (
	mu       sync.Mutex
	provider *sdktrace.TracerProvider
	output   io.Closer
)

// Init installs a provider with the stdout exporter. If outputFile is empty
// spans go to os.Stdout, otherwise the file is created and closed again by
// Shutdown.
func Init(serviceName, serviceVersion, outputFile string) error {
	mu.Lock()
	defer mu.Unlock()
	if provider != nil {
		return ErrAlreadyInitialized
	}

	var w io.Writer = os.Stdout
	var closer io.Closer
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return err
		}
		w, closer = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err == nil {
		err = install(serviceName, serviceVersion, exporter)
	}
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return err
	}
	output = closer
	return nil
}

// InitWithExporter installs a provider around any SDK span exporter.
func InitWithExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	if exporter == nil {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	if provider != nil {
		return ErrAlreadyInitialized
	}
	return install(serviceName, serviceVersion, exporter)
}

func install(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return err
	}
	provider = sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return nil
}

// Shutdown flushes and stops the installed provider and closes its output
// file. Init may be called again afterwards.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return nil
	}
	err := provider.Shutdown(ctx)
	if output != nil {
		err = errors.Join(err, output.Close())
	}
	provider, output = nil, nil
	return err
}

// Span wraps an OpenTelemetry span.
type Span struct {
	span trace.Span
}

// StartSpan starts an internal child span of whatever span ctx carries.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	ctx, span := otel.Tracer(instrumentation).Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	return ctx, &Span{span: span}
}

// StartOperation starts the span of one scheduler operation, named
// "taskpool.<op>" and tagged with the scheduler name.
func StartOperation(ctx context.Context, scheduler, op string) (context.Context, *Span) {
	ctx, sp := StartSpan(ctx, "taskpool."+op)
	sp.span.SetAttributes(KeyScheduler.String(scheduler))
	return ctx, sp
}

// WithAttributes attaches string attributes to the span.
func (s *Span) WithAttributes(attrs map[string]string) *Span {
	if s == nil || len(attrs) == 0 {
		return s
	}
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, v))
	}
	s.span.SetAttributes(kv...)
	return s
}

// SetTask records the task a span acted on.
func (s *Span) SetTask(id int, priority, status string) *Span {
	if s == nil {
		return s
	}
	s.span.SetAttributes(
		KeyTaskID.Int(id),
		KeyTaskPriority.String(priority),
		KeyTaskStatus.String(status),
	)
	return s
}

// SetWorker records the worker a span acted on.
func (s *Span) SetWorker(id int) *Span {
	if s == nil {
		return s
	}
	s.span.SetAttributes(KeyWorkerID.Int(id))
	return s
}

// Preempted marks a worker removal that handed its task back to the queue.
func (s *Span) Preempted(taskID int) *Span {
	if s == nil {
		return s
	}
	s.span.SetAttributes(KeyPreempted.Bool(true))
	s.span.AddEvent("task returned to queue", trace.WithAttributes(KeyTaskID.Int(taskID)))
	return s
}

// SetStatus records err on the span, or an OK status when err is nil.
func (s *Span) SetStatus(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
}

// EndSpan finalises the span and records status depending on err.
func EndSpan(sp *Span, err error) {
	if sp == nil {
		return
	}
	sp.SetStatus(err)
	sp.span.End()
}
