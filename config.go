package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/goware/urlx"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Server struct {
		Host      string   `long:"host" description:"address to bind the web server to" default:"localhost"`
		Port      int      `long:"port" description:"port to serve the UI and API on" env:"EMBERS_PORT" default:"3000"`
		Origins   []string `long:"origin" description:"origin allowed to call the API cross-site (may be repeated; default allows all)" yaml:",omitempty"`
		DebugPort int      `long:"debugport" description:"port to listen on for pprof(*)" default:"-1" yaml:"-"`
	} `group:"Server Options"`
	Telemetry struct {
		Collector string `long:"collector" description:"the url of the OTLP collector to receive the telemetry (or 'local')" env:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"http://localhost:4318"`
		Protocol  string `long:"protocol" description:"OTLP transport to use; auto infers it from the collector port" choice:"grpc" choice:"http" choice:"auto" default:"auto"`
		Exporter  string `long:"exporter" description:"where to send telemetry" choice:"otlp" choice:"stdout" choice:"none" default:"otlp"`
		Service   string `long:"service" description:"service.name reported on all telemetry" env:"OTEL_SERVICE_NAME" default:"embers"`
		Insecure  bool   `long:"insecure" description:"use this for insecure http (not https) connections" yaml:",omitempty"`
	} `group:"Telemetry Options"`
	Global struct {
		LogLevel  string `long:"loglevel" description:"level of logging" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
		LogFormat string `long:"logformat" description:"console log format" choice:"text" choice:"json" default:"text"`
		Seed      string `long:"seed" description:"string seed for random number generator (defaults to service name)" yaml:",omitempty"`
		Config    string `long:"config" description:"name of config file to load(*)" default:"" yaml:"-"`
		WriteCfg  string `long:"writecfg" description:"write effective YAML config to the specified output file and quit(*)" default:"" yaml:"-"`
	} `group:"Global Options"`
	collector *url.URL
}

func newOptions() *Options {
	return &Options{}
}

func (o *Options) CopyStarredFieldsFrom(other *Options) {
	o.Server.DebugPort = other.Server.DebugPort
	o.Global.Config = other.Global.Config
	o.Global.WriteCfg = other.Global.WriteCfg
}

// parseCollector cleans up the collector URL so the exporters get a
// well-formed host and port even when the user only typed a hostname.
func parseCollector(host string, insecure bool, protocol string) (*url.URL, string, error) {
	if host == "local" {
		host = "http://localhost:4318"
	}

	// if the scheme is not specified, fall back to the value of the insecure flag
	defaultScheme := "https"
	if insecure {
		defaultScheme = "http"
	}
	u, err := urlx.ParseWithDefaultScheme(host, defaultScheme)
	if err != nil {
		return nil, "", fmt.Errorf("unable to parse collector url %q: %w", host, err)
	}

	if protocol == "auto" {
		if u.Port() == "4317" {
			protocol = "grpc"
		} else {
			protocol = "http"
		}
	}
	if u.Port() == "" {
		port := "4318"
		if protocol == "grpc" {
			port = "4317"
		}
		u.Host = fmt.Sprintf("%s:%s", u.Host, port)
	}
	return u, protocol, nil
}

func ReadConfig(opts *Options, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	err = dec.Decode(opts)
	if err != nil {
		return err
	}
	log.Printf("read config from %s", filename)
	return nil
}

func WriteConfig(opts *Options, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	err = enc.Encode(opts)
	if err != nil {
		return err
	}
	log.Printf("wrote config to %s", filename)
	return nil
}
