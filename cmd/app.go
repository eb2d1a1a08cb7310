package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"catalog-adaptation-service/internal/compliance"
	"catalog-adaptation-service/internal/config"
	"catalog-adaptation-service/internal/gemini"
	"catalog-adaptation-service/internal/mapping"
	"catalog-adaptation-service/internal/openai"
	"catalog-adaptation-service/internal/providers"
	"catalog-adaptation-service/internal/schema"
	"catalog-adaptation-service/internal/secrets"
	"catalog-adaptation-service/internal/services"
	"catalog-adaptation-service/internal/synthesis"
	"catalog-adaptation-service/internal/templates"
)

func newLogger(cfg *config.Config, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if cfg.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// loadRegistry builds the attribute library and the template registry,
// reading TEMPLATES_FILE when it is set
func loadRegistry(cfg *config.Config) (*schema.Library, *templates.Registry, error) {
	lib := schema.NewLibrary()
	if cfg.TemplatesFile != "" {
		registry, err := templates.LoadRegistryFile(lib, cfg.TemplatesFile)
		if err != nil {
			return nil, nil, err
		}
		return lib, registry, nil
	}
	registry, err := templates.NewRegistry(lib)
	if err != nil {
		return nil, nil, err
	}
	return lib, registry, nil
}

// newAdaptationService wires the mapping, synthesis and compliance components
func newAdaptationService(
	ctx context.Context,
	cfg *config.Config,
	logger *logrus.Logger,
	lib *schema.Library,
	source services.TemplateSource,
) (*services.AdaptationService, error) {
	generator, err := newContentGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	mappingConfig := mapping.DefaultConfig()
	mappingConfig.AcceptanceThreshold = cfg.MappingAcceptanceThreshold
	mappingConfig.FuzzySimilarityThreshold = cfg.FuzzySimilarityThreshold

	adaptationConfig := services.DefaultAdaptationConfig()
	adaptationConfig.NewAttributePenalty = cfg.NewAttributePenalty
	adaptationConfig.RemovedAttributePenalty = cfg.RemovedAttributePenalty
	adaptationConfig.GeneratorTimeout = cfg.GeneratorTimeout

	adapter := services.NewAdaptationService(
		lib,
		source,
		mapping.NewEngine(mappingConfig),
		synthesis.NewEngine(logger, generator),
		compliance.NewValidator(),
		adaptationConfig,
		logger,
	)
	return adapter, nil
}

// newContentGenerator returns the LLM generator selected by CONTENT_PROVIDER,
// or nil when synthesis runs on rules only
func newContentGenerator(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (synthesis.ContentGenerator, error) {
	if cfg.ContentProvider == "" {
		return nil, nil
	}

	apiKey := cfg.ContentAPIKey
	if apiKey == "" && cfg.ContentAPIKeySecret != "" {
		if cfg.GCPProjectID == "" {
			return nil, errors.New("CONTENT_API_KEY_SECRET requires GCP_PROJECT_ID")
		}
		sm, err := secrets.NewGCPSecretManager(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, err
		}
		defer sm.Close()

		apiKey, err = sm.GetSecretValue(ctx, cfg.ContentAPIKeySecret)
		if err != nil {
			return nil, fmt.Errorf("failed to read content API key: %w", err)
		}
		logger.WithField("secret", cfg.ContentAPIKeySecret).Info("Content API key loaded from Secret Manager")
	}

	var provider providers.Provider
	switch cfg.ContentProvider {
	case providers.NameOpenAI:
		provider = openai.New(apiKey)
	case providers.NameGemini:
		provider = gemini.New(apiKey)
	default:
		return nil, fmt.Errorf("unsupported content provider %q", cfg.ContentProvider)
	}

	resilient := providers.NewResilient(
		provider,
		providers.NewRetrier(providers.DefaultRetryConfig()),
		providers.NewCircuitBreaker(5, 30*time.Second),
	)

	logger.WithFields(logrus.Fields{
		"provider": cfg.ContentProvider,
		"model":    cfg.DefaultContentModel(),
	}).Info("Content generation enabled")

	return synthesis.NewLLMGenerator(resilient, cfg.DefaultContentModel(), cfg.ContentTemperature, cfg.GeneratorRateLimit), nil
}
