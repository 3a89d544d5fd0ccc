package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	streamview "github.com/e7canasta/streamview"
)

// fileConfig is the YAML configuration file schema. Every field has a
// matching flag; flags override the file.
type fileConfig struct {
	URL           string   `yaml:"url"`
	Transport     string   `yaml:"transport"`      // any, udp, tcp
	LatencyMS     int      `yaml:"latency_ms"`     // jitter buffer window
	TimeoutS      int      `yaml:"timeout_s"`      // connection timeout
	DecodePaths   []string `yaml:"decode_paths"`   // vaapi-h264, vaapi-generic, software
	LowLatency    bool     `yaml:"low_latency"`
	DecodeThreads int      `yaml:"decode_threads"`
	SkipCorrupt   bool     `yaml:"skip_corrupt"`

	Restart struct {
		Enabled       bool `yaml:"enabled"`
		MaxAttempts   int  `yaml:"max_attempts"`
		InitialDelayS int  `yaml:"initial_delay_s"`
		MaxDelayS     int  `yaml:"max_delay_s"`
	} `yaml:"restart"`
}

func loadConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &cfg, nil
}

func parseTransport(s string) (streamview.Transport, error) {
	switch s {
	case "", "any":
		return streamview.TransportAny, nil
	case "udp":
		return streamview.TransportUDP, nil
	case "tcp":
		return streamview.TransportTCP, nil
	default:
		return streamview.TransportAny, fmt.Errorf("invalid transport %q (must be any, udp, or tcp)", s)
	}
}

func parseDecodePaths(names []string) ([]streamview.DecodePath, error) {
	if len(names) == 0 {
		return nil, nil
	}
	paths := make([]streamview.DecodePath, 0, len(names))
	for _, name := range names {
		switch name {
		case "vaapi-h264":
			paths = append(paths, streamview.DecodeVAAPIH264)
		case "vaapi-generic":
			paths = append(paths, streamview.DecodeVAAPIGeneric)
		case "software":
			paths = append(paths, streamview.DecodeSoftware)
		default:
			return nil, fmt.Errorf("invalid decode path %q (must be vaapi-h264, vaapi-generic, or software)", name)
		}
	}
	return paths, nil
}

// sessionConfig assembles the session configuration from the file (if
// any) overlaid with the flag values that were explicitly set.
func sessionConfig(file *fileConfig, flags *cliFlags) (streamview.Config, error) {
	cfg := streamview.Config{}

	if file != nil {
		cfg.Endpoint.URL = file.URL
		transport, err := parseTransport(file.Transport)
		if err != nil {
			return cfg, err
		}
		cfg.Endpoint.Transport = transport
		cfg.Endpoint.Latency = time.Duration(file.LatencyMS) * time.Millisecond
		cfg.Endpoint.Timeout = time.Duration(file.TimeoutS) * time.Second
		paths, err := parseDecodePaths(file.DecodePaths)
		if err != nil {
			return cfg, err
		}
		cfg.DecodePaths = paths
		cfg.LowLatency = file.LowLatency
		cfg.DecodeThreads = file.DecodeThreads
		cfg.SkipCorrupt = file.SkipCorrupt
	}

	if flags.url != "" {
		cfg.Endpoint.URL = flags.url
	}
	if flags.transport != "" {
		transport, err := parseTransport(flags.transport)
		if err != nil {
			return cfg, err
		}
		cfg.Endpoint.Transport = transport
	}
	if flags.latency > 0 {
		cfg.Endpoint.Latency = flags.latency
	}
	if flags.timeout > 0 {
		cfg.Endpoint.Timeout = flags.timeout
	}
	if len(flags.decodePaths) > 0 {
		paths, err := parseDecodePaths(flags.decodePaths)
		if err != nil {
			return cfg, err
		}
		cfg.DecodePaths = paths
	}
	if flags.lowLatency {
		cfg.LowLatency = true
	}
	if flags.decodeThreads > 0 {
		cfg.DecodeThreads = flags.decodeThreads
	}
	if flags.skipCorrupt {
		cfg.SkipCorrupt = true
	}

	if cfg.Endpoint.URL == "" {
		return cfg, fmt.Errorf("stream URL is required (--url or config file)")
	}
	return cfg, nil
}
