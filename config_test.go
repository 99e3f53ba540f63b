package main

import (
	"path/filepath"
	"testing"
)

func Test_ParseCollector(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		insecure bool
		protocol string
		wantHost string
		wantProt string
	}{
		{"local shortcut", "local", true, "auto", "localhost:4318", "http"},
		{"bare hostname gets http port", "otel.example.com", true, "auto", "otel.example.com:4318", "http"},
		{"grpc port selects grpc", "otel.example.com:4317", true, "auto", "otel.example.com:4317", "grpc"},
		{"explicit protocol wins over port", "otel.example.com:4317", true, "http", "otel.example.com:4317", "http"},
		{"grpc protocol gets grpc port", "otel.example.com", false, "grpc", "otel.example.com:4317", "grpc"},
		{"scheme and port preserved", "https://collector.example.com:443", false, "auto", "collector.example.com:443", "http"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, protocol, err := parseCollector(tt.host, tt.insecure, tt.protocol)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if u.Host != tt.wantHost {
				t.Errorf("host: got %s, want %s", u.Host, tt.wantHost)
			}
			if protocol != tt.wantProt {
				t.Errorf("protocol: got %s, want %s", protocol, tt.wantProt)
			}
		})
	}

	t.Run("scheme follows insecure flag", func(t *testing.T) {
		u, _, err := parseCollector("otel.example.com", false, "auto")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u.Scheme != "https" {
			t.Errorf("expected https scheme, got %s", u.Scheme)
		}
		u, _, err = parseCollector("otel.example.com", true, "auto")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u.Scheme != "http" {
			t.Errorf("expected http scheme, got %s", u.Scheme)
		}
	})

	t.Run("garbage url errors", func(t *testing.T) {
		if _, _, err := parseCollector("exa mple.com", true, "auto"); err == nil {
			t.Error("expected an error for unparseable host")
		}
	})
}

func Test_ConfigRoundTrip(t *testing.T) {
	opts := newOptions()
	opts.Server.Port = 8080
	opts.Telemetry.Collector = "otel.example.com:4317"
	opts.Telemetry.Exporter = "stdout"
	opts.Telemetry.Insecure = true
	opts.Global.LogLevel = "debug"
	opts.Global.Seed = "kindling"

	filename := filepath.Join(t.TempDir(), "embers.yml")
	if err := WriteConfig(opts, filename); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	got := newOptions()
	if err := ReadConfig(got, filename); err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if got.Server.Port != 8080 {
		t.Errorf("port: got %d, want 8080", got.Server.Port)
	}
	if got.Telemetry.Collector != "otel.example.com:4317" {
		t.Errorf("collector: got %s", got.Telemetry.Collector)
	}
	if got.Telemetry.Exporter != "stdout" {
		t.Errorf("exporter: got %s", got.Telemetry.Exporter)
	}
	if !got.Telemetry.Insecure {
		t.Error("insecure flag lost in round trip")
	}
	if got.Global.Seed != "kindling" {
		t.Errorf("seed: got %s", got.Global.Seed)
	}
}

func Test_ConfigStarredFields(t *testing.T) {
	cmdopts := newOptions()
	cmdopts.Server.DebugPort = 6060
	cmdopts.Global.Config = "embers.yml"
	cmdopts.Global.WriteCfg = "out.yml"

	opts := newOptions()
	opts.CopyStarredFieldsFrom(cmdopts)
	if opts.Server.DebugPort != 6060 {
		t.Errorf("debugport not copied: got %d", opts.Server.DebugPort)
	}
	if opts.Global.Config != "embers.yml" {
		t.Errorf("config not copied: got %s", opts.Global.Config)
	}
	if opts.Global.WriteCfg != "out.yml" {
		t.Errorf("writecfg not copied: got %s", opts.Global.WriteCfg)
	}
}

func Test_ReadConfigMissingFile(t *testing.T) {
	opts := newOptions()
	if err := ReadConfig(opts, filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
