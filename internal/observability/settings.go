package observability

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ca-srg/arxivbot/internal/config"
)

const (
	protocolHTTP = "http/protobuf"
	protocolGRPC = "grpc"

	serviceNameKey = "service.name"
)

// Settings is the resolved OpenTelemetry configuration.
type Settings struct {
	Enabled            bool
	ServiceName        string
	Endpoint           string
	Protocol           string
	ResourceAttributes map[string]string
	Sampler            string
	SamplerArg         float64
}

// SettingsFromConfig resolves and validates telemetry settings.
func SettingsFromConfig(cfg *config.Config) (*Settings, error) {
	if cfg == nil {
		return nil, fmt.Errorf("observability: nil configuration")
	}
	attrs, err := parseResourceAttributes(cfg.OTelResourceAttributes)
	if err != nil {
		return nil, fmt.Errorf("observability: OTEL_RESOURCE_ATTRIBUTES: %w", err)
	}
	s := &Settings{
		Enabled:            cfg.OTelEnabled,
		ServiceName:        strings.TrimSpace(cfg.OTelServiceName),
		Endpoint:           strings.TrimSpace(cfg.OTelExporterOTLPEndpoint),
		Protocol:           strings.ToLower(strings.TrimSpace(cfg.OTelExporterOTLPProtocol)),
		ResourceAttributes: attrs,
		Sampler:            strings.ToLower(strings.TrimSpace(cfg.OTelTracesSampler)),
		SamplerArg:         cfg.OTelTracesSamplerArg,
	}
	if s.ServiceName == "" {
		s.ServiceName = "arxivbot"
	}
	if s.Protocol == "" {
		s.Protocol = protocolHTTP
	}
	if s.Sampler == "" {
		s.Sampler = "always_on"
	}
	if _, ok := s.ResourceAttributes[serviceNameKey]; !ok {
		s.ResourceAttributes[serviceNameKey] = s.ServiceName
	}

	if !s.Enabled {
		return s, nil
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	if s.Endpoint == "" {
		return fmt.Errorf("observability: OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED=true")
	}
	switch s.Protocol {
	case protocolHTTP:
		parsed, err := url.Parse(s.Endpoint)
		if err != nil {
			return fmt.Errorf("observability: invalid OTLP endpoint: %w", err)
		}
		if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("observability: OTLP endpoint must be an http(s) URL for %s", protocolHTTP)
		}
	case protocolGRPC:
		if _, _, err := grpcTarget(s.Endpoint); err != nil {
			return fmt.Errorf("observability: invalid OTLP gRPC endpoint: %w", err)
		}
	default:
		return fmt.Errorf("observability: unsupported OTLP protocol %q", s.Protocol)
	}
	if s.Sampler == "traceidratio" && (s.SamplerArg <= 0 || s.SamplerArg > 1) {
		return fmt.Errorf("observability: OTEL_TRACES_SAMPLER_ARG must be in (0, 1] for traceidratio")
	}
	return nil
}

// parseResourceAttributes reads the key1=value1,key2=value2 form.
func parseResourceAttributes(input string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, pair := range strings.Split(input, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid resource attribute %q", pair)
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return attrs, nil
}
