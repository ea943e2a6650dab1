package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grandcat/zeroconf"
)

const (
	ServiceType   = "_GPMDP._tcp"
	ServiceDomain = "local."
)

// Record describes the advertised service
type Record struct {
	Instance   string // host-identifying display name
	Service    string // defaults to ServiceType
	Domain     string // defaults to ServiceDomain
	Port       int
	APIVersion string
}

// TXT returns the TXT metadata carried by the record
func (r Record) TXT() []string {
	if r.APIVersion == "" {
		return nil
	}
	return []string{"API_VERSION=" + r.APIVersion}
}

func (r Record) withDefaults() Record {
	if r.Service == "" {
		r.Service = ServiceType
	}
	if r.Domain == "" {
		r.Domain = ServiceDomain
	}
	if r.Instance == "" {
		r.Instance = "GPMDP"
	}
	return r
}

// Advertiser publishes one service record at a time
type Advertiser interface {
	Start(rec Record) error
	Stop()
}

// RegisterFunc matches zeroconf.Register
type RegisterFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)

// ZeroconfAdvertiser advertises the API over mDNS
type ZeroconfAdvertiser struct {
	mu       sync.Mutex
	server   *zeroconf.Server
	register RegisterFunc
	ifaces   []net.Interface
	logger   log.Logger
}

// NewZeroconfAdvertiser creates an advertiser on all interfaces (ifaces == nil)
func NewZeroconfAdvertiser(ifaces []net.Interface, logger log.Logger) *ZeroconfAdvertiser {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &ZeroconfAdvertiser{
		register: zeroconf.Register,
		ifaces:   ifaces,
		logger:   logger,
	}
}

// Start publishes rec, replacing any record already live
func (a *ZeroconfAdvertiser) Start(rec Record) error {
	if rec.Port <= 0 || rec.Port > 65535 {
		return fmt.Errorf("invalid advertise port %d", rec.Port)
	}
	rec = rec.withDefaults()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Stop existing if any
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := a.register(rec.Instance, rec.Service, rec.Domain, rec.Port, rec.TXT(), a.ifaces)
	if err != nil {
		return fmt.Errorf("failed to register mdns service: %w", err)
	}
	if server == nil {
		return errors.New("failed to register mdns service: no server returned")
	}
	a.server = server

	level.Info(a.logger).Log("msg", "advertising service",
		"instance", rec.Instance, "service", rec.Service, "port", rec.Port, "api_version", rec.APIVersion)
	return nil
}

// Stop withdraws the record. Safe when nothing is advertised.
func (a *ZeroconfAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	level.Info(a.logger).Log("msg", "stopped advertising service")
}

// Active reports whether a record is live
func (a *ZeroconfAdvertiser) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Endpoint is a resolved API server
type Endpoint struct {
	Instance   string
	Host       string
	Port       int
	APIVersion string
}

// URL returns the websocket URL of the endpoint
func (e Endpoint) URL() string {
	return fmt.Sprintf("ws://%s/", net.JoinHostPort(e.Host, fmt.Sprint(e.Port)))
}

// Browse collects advertised API servers until ctx is done
func Browse(ctx context.Context, service string) ([]Endpoint, error) {
	if service == "" {
		service = ServiceType
	}
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan []Endpoint, 1)
	go func() {
		var endpoints []Endpoint
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					found <- endpoints
					return
				}
				if ep, ok := endpointFromEntry(entry); ok {
					endpoints = append(endpoints, ep)
				}
			case <-ctx.Done():
				found <- endpoints
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, service, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse %s: %w", service, err)
	}

	return <-found, nil
}

func endpointFromEntry(entry *zeroconf.ServiceEntry) (Endpoint, bool) {
	if entry == nil {
		return Endpoint{}, false
	}
	ep := Endpoint{
		Instance:   entry.Instance,
		Port:       entry.Port,
		APIVersion: ParseAPIVersion(entry.Text),
	}
	switch {
	case len(entry.AddrIPv4) > 0:
		ep.Host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		ep.Host = entry.AddrIPv6[0].String()
	case entry.HostName != "":
		ep.Host = strings.TrimSuffix(entry.HostName, ".")
	default:
		return Endpoint{}, false
	}
	return ep, true
}

// ParseAPIVersion extracts API_VERSION from TXT records
func ParseAPIVersion(txt []string) string {
	for _, t := range txt {
		if v, ok := strings.CutPrefix(t, "API_VERSION="); ok {
			return v
		}
	}
	return ""
}
