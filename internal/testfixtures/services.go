package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/proof-of-ship/internal/application"
	"github.com/example/proof-of-ship/internal/release"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks. Services built by one factory share a
// write guard, as they do in the binary.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Guard       *application.WriteGuard
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("commitment"),
		Guard:       application.NewWriteGuard(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("commitment")
	}
	if factory.Guard == nil {
		factory.Guard = application.NewWriteGuard()
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// ServiceDeps captures the repositories and collaborators shared by the services.
type ServiceDeps struct {
	Commitments application.CommitmentRepository
	Verdicts    application.VerdictRepository
	Source      release.Source
	Options     *application.EvaluationOptions
	Logger      *slog.Logger
}

func (d ServiceDeps) options(guard *application.WriteGuard) application.EvaluationOptions {
	options := application.DefaultEvaluationOptions()
	if d.Options != nil {
		options = *d.Options
	}
	if options.Guard == nil {
		options.Guard = guard
	}
	return options
}

// NewCommitmentService builds a commitment service on the factory clock and IDs.
func (f *ServiceFactory) NewCommitmentService(deps ServiceDeps) *application.CommitmentService {
	return application.NewCommitmentServiceWithLogger(
		deps.Commitments,
		deps.Verdicts,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		f.Guard,
		deps.Logger,
	)
}

// NewEvaluationService builds an evaluation service on the factory clock.
func (f *ServiceFactory) NewEvaluationService(deps ServiceDeps) *application.EvaluationService {
	return application.NewEvaluationServiceWithLogger(
		deps.Commitments,
		deps.Verdicts,
		deps.Source,
		f.Clock.NowFunc(),
		deps.options(f.Guard),
		deps.Logger,
	)
}

// NewEvidenceService builds an evidence service on the factory clock.
func (f *ServiceFactory) NewEvidenceService(deps ServiceDeps) *application.EvidenceService {
	options := deps.options(f.Guard)
	return application.NewEvidenceServiceWithLogger(
		deps.Commitments,
		deps.Verdicts,
		f.Clock.NowFunc(),
		options.History,
		options.Guard,
		deps.Logger,
	)
}
