package admission

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/inkproof/stencil-gateway/internal/identity"
	"github.com/inkproof/stencil-gateway/internal/quota"
	"github.com/inkproof/stencil-gateway/pkg/metrics"
)

// Pipeline wires the four gates in order. All shared state lives in the
// counter store, so the pipeline itself is stateless and safe for any number
// of concurrent requests.
type Pipeline struct {
	resolver *identity.Resolver
	hourly   *quota.HourlyLimiter
	devices  *quota.DeviceRegistry
	trial    *quota.TrialCounter
	leads    *quota.LeadRecorder
	logger   *zap.Logger
}

func NewPipeline(
	resolver *identity.Resolver,
	hourly *quota.HourlyLimiter,
	devices *quota.DeviceRegistry,
	trial *quota.TrialCounter,
	leads *quota.LeadRecorder,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		hourly:   hourly,
		devices:  devices,
		trial:    trial,
		leads:    leads,
		logger:   logger,
	}
}

// Admit runs the gates for one request. Rejections are normal control flow
// and come back as a Decision with Admitted=false; a non-nil error means a
// store call failed and the request must be refused (fail-closed — a quota
// gate that cannot read its counters admits nothing). Side effects already
// committed before a failure (a registered device, a consumed trial unit)
// are not rolled back.
func (p *Pipeline) Admit(ctx context.Context, attrs identity.Attrs) (Decision, error) {
	id, err := p.resolver.Resolve(attrs)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidIdentity) {
			metrics.AdmissionDecisions.WithLabelValues(string(CodeInvalidIdentity)).Inc()
			return Decision{Code: CodeInvalidIdentity}, nil
		}
		return Decision{}, err
	}
	scope := id.Scope

	hourlyUsed, ok, err := p.hourly.Allow(ctx, scope)
	if err != nil {
		return p.storeFailure(scope, err)
	}
	if !ok {
		return p.reject(Decision{
			Scope:       scope,
			Code:        CodeHourlyLimit,
			Used:        p.hourly.Limit(),
			Limit:       p.hourly.Limit(),
			HourlyUsed:  p.hourly.Limit(),
			HourlyLimit: p.hourly.Limit(),
		}), nil
	}

	ok, err = p.devices.Admit(ctx, scope, id.DeviceID)
	if err != nil {
		return p.storeFailure(scope, err)
	}
	if !ok {
		return p.reject(Decision{
			Scope:       scope,
			Code:        CodeDeviceLimit,
			Used:        p.devices.Cap(),
			Limit:       p.devices.Cap(),
			HourlyUsed:  int(hourlyUsed),
			HourlyLimit: p.hourly.Limit(),
		}), nil
	}

	used, first, ok, err := p.trial.Consume(ctx, scope)
	if err != nil {
		return p.storeFailure(scope, err)
	}
	// Leads are recorded for every request that reached the trial counter,
	// admitted or not.
	p.leads.Record(ctx, id, first)
	if !ok {
		return p.reject(Decision{
			Scope:       scope,
			Code:        CodeTrialLimit,
			Used:        p.trial.Limit(),
			Limit:       p.trial.Limit(),
			HourlyUsed:  int(hourlyUsed),
			HourlyLimit: p.hourly.Limit(),
		}), nil
	}

	metrics.AdmissionDecisions.WithLabelValues("ADMITTED").Inc()
	return Decision{
		Admitted:    true,
		Scope:       scope,
		Used:        int(used),
		Limit:       p.trial.Limit(),
		HourlyUsed:  int(hourlyUsed),
		HourlyLimit: p.hourly.Limit(),
	}, nil
}

func (p *Pipeline) reject(d Decision) Decision {
	metrics.AdmissionDecisions.WithLabelValues(string(d.Code)).Inc()
	p.logger.Info("request rejected",
		zap.String("scope", d.Scope.Key()),
		zap.String("code", string(d.Code)),
		zap.Int("used", d.Used),
		zap.Int("limit", d.Limit),
	)
	return d
}

func (p *Pipeline) storeFailure(scope identity.Scope, err error) (Decision, error) {
	metrics.StoreErrors.Inc()
	p.logger.Error("admission store call failed",
		zap.String("scope", scope.Key()),
		zap.Error(err),
	)
	return Decision{}, err
}
