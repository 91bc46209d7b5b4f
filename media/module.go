package media

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leeforge/recipemedia/config"
	"github.com/leeforge/recipemedia/logging"
	"github.com/leeforge/recipemedia/media/handler"
	"github.com/leeforge/recipemedia/media/processor"
	"github.com/leeforge/recipemedia/media/storage"
	"github.com/leeforge/recipemedia/metrics"
)

// Settings is everything under the media config key.
type Settings struct {
	Processor processor.Config  `mapstructure:"processor"`
	HTTP      handler.Config    `mapstructure:"http"`
	OSS       storage.OSSConfig `mapstructure:"oss"`
}

func (s *Settings) Validate() error {
	if err := s.Processor.Validate(); err != nil {
		return fmt.Errorf("processor: %w", err)
	}
	if err := s.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := s.OSS.Validate(); err != nil {
		return fmt.Errorf("oss: %w", err)
	}
	return nil
}

// Module owns the long-lived pipeline and the HTTP handler built on it.
type Module struct {
	Settings Settings
	Pipeline *processor.Pipeline
	Handler  *handler.Handler
	Metrics  *metrics.Collector

	logger logging.Logger
}

// NewModule binds the logging and media keys of cfg and builds the module.
func NewModule(cfg *config.Config) (*Module, error) {
	var logCfg logging.Config
	if err := cfg.BindKeyWithDefaults("logging", &logCfg); err != nil {
		return nil, err
	}
	var settings Settings
	if err := cfg.BindKeyWithDefaults("media", &settings); err != nil {
		return nil, err
	}
	return Build(settings, logging.NewFactory(logging.NewLogger(logCfg)))
}

// Build wires an already bound configuration.
func Build(settings Settings, loggers *logging.Factory) (*Module, error) {
	if loggers == nil {
		loggers = logging.NewFactory(nil)
	}
	collector := metrics.NewCollector()
	opts := []processor.Option{
		processor.WithLogger(loggers.GetLogger("media.processor")),
		processor.WithMetrics(collector),
	}

	if settings.OSS.Enabled {
		mirror, err := storage.NewOSSMirror(settings.OSS)
		if err != nil {
			return nil, err
		}
		opts = append(opts, processor.WithMirror(mirror))
	}

	pipeline, err := processor.New(settings.Processor, opts...)
	if err != nil {
		return nil, err
	}

	m := &Module{
		Settings: settings,
		Pipeline: pipeline,
		Handler:  handler.New(pipeline, settings.HTTP, loggers.GetLogger("media.http")),
		Metrics:  collector,
		logger:   loggers.Root(),
	}
	m.logger.Infof("media module ready: upload dir %s, mirror enabled %t",
		settings.HTTP.UploadDir, settings.OSS.Enabled)
	return m, nil
}

// RegisterRoutes mounts the image endpoints and GET /media/metrics.
func (m *Module) RegisterRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(m.Metrics.Middleware(routePattern))
		m.Handler.RegisterRoutes(r)
	})
	router.Method(http.MethodGet, "/media/metrics", m.Metrics.Handler())
}

// Routes returns a standalone router with request logging, panic recovery
// and request metrics.
func (m *Module) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.RecoveryMiddleware(m.logger))
	r.Use(logging.HTTPMiddleware(m.logger))
	m.RegisterRoutes(r)
	return r
}

// routePattern reads the matched chi pattern once routing is done.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// Close flushes buffered log output.
func (m *Module) Close() error {
	return m.logger.Sync()
}
