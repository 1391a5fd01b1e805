package postal

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options configures the orchestrator.
type Options struct {
	// ShipperAddress is the fallback origin applied to requests that omit
	// one.
	ShipperAddress *Address

	// DefaultCurrency tags zero-value sums; defaults to DefaultCurrency.
	DefaultCurrency string

	Logger *otelzap.Logger
	Tracer trace.Tracer
}

// OptionResult is one element of the orchestrator's result stream: either a
// priced option or a failure tagged with its originating carrier. Exactly one
// of Option and Err is set.
type OptionResult struct {
	CarrierName string
	Option      *Option
	Err         error
}

// Postal owns one live backend instance per configured carrier and fans
// rating requests out to all of them. It is stateless across calls beyond
// its fixed carrier table, configured once at construction.
type Postal struct {
	carriers map[string]Carrier
	order    []string
	shipper  *Address
	currency string
	logger   *otelzap.Logger
	tracer   trace.Tracer
}

// New builds an orchestrator over the given carrier backends. Registering
// two carriers with the same name is a configuration error.
func New(opts Options, carriers ...Carrier) (*Postal, error) {
	if len(carriers) == 0 {
		return nil, &ConfigurationError{Message: "no carriers configured"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("postal")
	}
	currency := opts.DefaultCurrency
	if currency == "" {
		currency = DefaultCurrency
	}

	p := &Postal{
		carriers: make(map[string]Carrier, len(carriers)),
		shipper:  opts.ShipperAddress.Clone(),
		currency: currency,
		logger:   logger,
		tracer:   tracer,
	}
	for _, c := range carriers {
		name := c.Name()
		if _, dup := p.carriers[name]; dup {
			return nil, &ConfigurationError{Message: "duplicate carrier " + name}
		}
		p.carriers[name] = c
		p.order = append(p.order, name)
	}
	return p, nil
}

// Carrier returns a configured backend by name.
func (p *Postal) Carrier(name string) (Carrier, error) {
	c, ok := p.carriers[name]
	if !ok {
		return nil, &NotSupportedError{What: "carrier " + name}
	}
	return c, nil
}

// Carriers returns all configured backends in registration order.
func (p *Postal) Carriers() []Carrier {
	result := make([]Carrier, 0, len(p.order))
	for _, name := range p.order {
		result = append(result, p.carriers[name])
	}
	return result
}

// CarrierNames returns the configured carrier identifiers in registration
// order.
func (p *Postal) CarrierNames() []string {
	return append([]string(nil), p.order...)
}

// prepare clones the request, applies the configured shipper address when the
// origin is absent, and normalizes a past ship time to "as soon as possible".
// Caller-supplied data is never mutated.
func (p *Postal) prepare(req *Request) *Request {
	cp := req.Clone()
	if cp.Origin == nil {
		cp.Origin = p.shipper.Clone()
	}
	cp.normalizeShipTime(time.Now())
	return cp
}

// Options queries carriers one at a time, in registration order, streaming
// each priced option as it is produced. A carrier failure is delivered as a
// single tagged error record and does not stop the remaining carriers. The
// channel is closed once every carrier has been queried.
func (p *Postal) Options(ctx context.Context, req *Request) <-chan OptionResult {
	prepared := p.prepare(req)
	out := make(chan OptionResult)

	go func() {
		defer close(out)
		for _, name := range p.order {
			p.queryCarrier(ctx, p.carriers[name], prepared, out)
		}
	}()

	return out
}

// OptionsConcurrent queries every carrier's GetServices in parallel, one
// worker per carrier, and yields each service result as soon as it is
// available rather than waiting for the slowest carrier. Ordering across
// carriers is nondeterministic; ordering within one carrier's batch is
// carrier-defined. The channel closes when all carriers, failed or not, have
// reported completion.
func (p *Postal) OptionsConcurrent(ctx context.Context, req *Request) <-chan OptionResult {
	prepared := p.prepare(req)
	out := make(chan OptionResult)

	g := &errgroup.Group{}
	for _, name := range p.order {
		carrier := p.carriers[name]
		g.Go(func() error {
			p.queryCarrier(ctx, carrier, prepared, out)
			return nil
		})
	}

	go func() {
		g.Wait()
		close(out)
	}()

	return out
}

// queryCarrier runs one carrier's GetServices and delivers its results, or
// its single tagged failure, to the output channel.
func (p *Postal) queryCarrier(ctx context.Context, c Carrier, req *Request, out chan<- OptionResult) {
	ctx, span := p.tracer.Start(ctx, "postal.GetServices",
		trace.WithAttributes(attribute.String("carrier", c.Name())))
	defer span.End()

	options, err := c.GetServices(ctx, req)
	if err != nil {
		p.logger.Ctx(ctx).Warn("carrier rating failed",
			zap.String("carrier", c.Name()),
			zap.Error(err),
		)
		span.RecordError(err)
		select {
		case out <- OptionResult{CarrierName: c.Name(), Err: err}:
		case <-ctx.Done():
		}
		return
	}

	for i := range options {
		select {
		case out <- OptionResult{CarrierName: c.Name(), Option: &options[i]}:
		case <-ctx.Done():
			return
		}
	}
}

// ValidateAddress validates through the first configured backend that has
// the capability, failing with NotSupportedError when none does.
func (p *Postal) ValidateAddress(ctx context.Context, addr *Address) (*AddressMatch, error) {
	for _, name := range p.order {
		c := p.carriers[name]
		if c.Capabilities().AddressValidation {
			return c.ValidateAddress(ctx, addr)
		}
	}
	return nil, &NotSupportedError{What: "address validation"}
}
