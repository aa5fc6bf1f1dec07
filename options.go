package conduit

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tfkr-ae/conduit/domain"
)

// WithOptions applies a series of configuration functions to the controller.
// It stops at the first option that fails and returns its error.
func (controller *Controller) WithOptions(options ...func(*Controller) error) error {
	for _, option := range options {
		err := option(controller)
		if err != nil {
			return fmt.Errorf("applying option on controller : %w", err)
		}
	}
	return nil
}

// WithLogger sets the structured logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) func(*Controller) error {
	return func(controller *Controller) error {
		if logger == nil {
			logger = slog.Default()
		}
		controller.Logger = logger
		if responder, ok := controller.Responder.(*NegotiatingResponder); ok {
			responder.Logger = logger
		}
		return nil
	}
}

// WithConfigDir loads config.yaml from appConfigDir, creating the directory and the file if needed.
// An installed NegotiatingResponder is reconfigured from the loaded settings.
func WithConfigDir(appConfigDir string) func(*Controller) error {
	return func(controller *Controller) error {
		cfg, err := LoadConfig(appConfigDir)
		if err != nil {
			return fmt.Errorf("loading config from %s : %w", appConfigDir, err)
		}
		controller.setConfig(cfg)
		return nil
	}
}

// WithConfig sets an already loaded configuration.
// An installed NegotiatingResponder is reconfigured from it.
func WithConfig(cfg *Config) func(*Controller) error {
	return func(controller *Controller) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		controller.setConfig(cfg)
		return nil
	}
}

func (controller *Controller) setConfig(cfg *Config) {
	controller.Config = cfg
	if responder, ok := controller.Responder.(*NegotiatingResponder); ok {
		responder.Configure(cfg)
	}
}

// WithParamsProcessor sets the hook that normalizes params before every operation.
// Several processors are chained in order.
func WithParamsProcessor(processors ...ParamsProcessor) func(*Controller) error {
	return func(controller *Controller) error {
		if len(processors) == 1 {
			controller.ProcessParams = processors[0]
			return nil
		}
		controller.ProcessParams = ChainProcessors(processors...)
		return nil
	}
}

// WithResponder sets the responder used by Respond.
func WithResponder(responder Responder) func(*Controller) error {
	return func(controller *Controller) error {
		if responder == nil {
			return ErrNoResponder
		}
		controller.Responder = responder
		return nil
	}
}

// WithViews installs a NegotiatingResponder rendering HTML through views, configured from the current config.
// A later WithConfig or WithConfigDir reconfigures it, so the order of the options does not matter.
func WithViews(views ViewRenderer) func(*Controller) error {
	return func(controller *Controller) error {
		responder := NewNegotiatingResponder(views, controller.Config)
		responder.Logger = controller.logger()
		controller.Responder = responder
		return nil
	}
}

// WithSuccessPolicy replaces the policy deciding whether a Run counts as a success.
func WithSuccessPolicy(policy SuccessPolicy) func(*Controller) error {
	return func(controller *Controller) error {
		if policy == nil {
			return errors.New("success policy is nil")
		}
		controller.SuccessPolicy = policy
		return nil
	}
}

// WithJournal records every dispatch to repo.
func WithJournal(repo domain.DispatchRepository) func(*Controller) error {
	return func(controller *Controller) error {
		controller.Journal = repo
		return nil
	}
}

// WithJournalScope limits the journal to the dispatches matched by scope. A nil scope journals everything.
func WithJournalScope(scope *Scope) func(*Controller) error {
	return func(controller *Controller) error {
		controller.JournalScope = scope
		return nil
	}
}

// WithMetrics registers the dispatch collectors on reg.
func WithMetrics(reg prometheus.Registerer) func(*Controller) error {
	return func(controller *Controller) error {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		m, err := newMetrics(reg)
		if err != nil {
			return err
		}
		controller.metrics = m
		return nil
	}
}
