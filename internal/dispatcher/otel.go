package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/gsnap/extension/internal/dispatcher"

// instruments are read from the global meter provider, which is a no-op
// until the otel package installs one.
type instruments struct {
	pending metric.Int64ObservableGauge
	handled metric.Int64Counter
	dropped metric.Int64Counter
	latency metric.Float64Histogram
}

func newInstruments(pending func() map[string]int) (instruments, error) {
	m := otel.Meter(instrumentationName)

	var (
		in  instruments
		err error
	)

	in.pending, err = m.Int64ObservableGauge(
		"gsnap.dispatch.pending",
		metric.WithDescription("Commands waiting in a handler queue"),
	)
	if err != nil {
		return in, fmt.Errorf("creating pending gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for cmd, n := range pending() {
			o.ObserveInt64(in.pending, int64(n), metric.WithAttributes(commandAttr(cmd)))
		}
		return nil
	}, in.pending)
	if err != nil {
		return in, fmt.Errorf("registering pending callback: %w", err)
	}

	if in.handled, err = m.Int64Counter(
		"gsnap.dispatch.handled",
		metric.WithDescription("Queued commands run to completion"),
	); err != nil {
		return in, fmt.Errorf("creating handled counter: %w", err)
	}

	if in.dropped, err = m.Int64Counter(
		"gsnap.dispatch.dropped",
		metric.WithDescription("Commands rejected because their queue was full"),
	); err != nil {
		return in, fmt.Errorf("creating dropped counter: %w", err)
	}

	if in.latency, err = m.Float64Histogram(
		"gsnap.dispatch.latency",
		metric.WithDescription("Time from receipt to handler return"),
		metric.WithUnit("ms"),
	); err != nil {
		return in, fmt.Errorf("creating latency histogram: %w", err)
	}

	return in, nil
}

func commandAttr(cmd string) attribute.KeyValue {
	return attribute.String("command", cmd)
}
