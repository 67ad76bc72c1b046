// Copyright 2023 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hostlb

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/bufbuild/hostlb"

const (
	blockPathPassive = "passive"
	blockPathActive  = "active"
)

//nolint:gochecknoglobals
var (
	passiveAttrs = metric.WithAttributes(attribute.String("path", blockPathPassive))
	activeAttrs  = metric.WithAttributes(attribute.String("path", blockPathActive))
)

// instruments are the metrics recorded by managers and hosts. A nil
// *instruments records nothing.
type instruments struct {
	blocks          metric.Int64Counter
	exhausted       metric.Int64Counter
	inspectFailures metric.Int64Counter
}

func newInstruments(provider metric.MeterProvider) *instruments {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(instrumentationName)
	return &instruments{
		blocks: int64Counter(meter, "hostlb.host.blocks",
			"Number of times a host was blocked, by feedback path."),
		exhausted: int64Counter(meter, "hostlb.selection.exhausted",
			"Number of selections that found every host blocked."),
		inspectFailures: int64Counter(meter, "hostlb.inspect.failures",
			"Number of failed host inspections."),
	}
}

func int64Counter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return noop.Int64Counter{}
	}
	return counter
}

func (i *instruments) recordBlock(ctx context.Context, path string) {
	if i == nil {
		return
	}
	if path == blockPathActive {
		i.blocks.Add(ctx, 1, activeAttrs)
		return
	}
	i.blocks.Add(ctx, 1, passiveAttrs)
}

func (i *instruments) recordExhausted(ctx context.Context) {
	if i == nil {
		return
	}
	i.exhausted.Add(ctx, 1)
}

func (i *instruments) recordInspectFailure(ctx context.Context) {
	if i == nil {
		return
	}
	i.inspectFailures.Add(ctx, 1)
}
