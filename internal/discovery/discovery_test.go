package discovery

import (
	"errors"
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDefaultsAndTXT(t *testing.T) {
	rec := Record{Port: 5672, APIVersion: "1.1.0"}.withDefaults()

	assert.Equal(t, ServiceType, rec.Service)
	assert.Equal(t, ServiceDomain, rec.Domain)
	assert.Equal(t, "GPMDP", rec.Instance)
	assert.Equal(t, []string{"API_VERSION=1.1.0"}, rec.TXT())
	assert.Nil(t, Record{}.TXT())
}

func TestStartPassesRecordToRegister(t *testing.T) {
	var gotInstance, gotService, gotDomain string
	var gotPort int
	var gotTXT []string

	adv := NewZeroconfAdvertiser(nil, nil)
	adv.register = func(instance, service, domain string, port int, text []string, _ []net.Interface) (*zeroconf.Server, error) {
		gotInstance, gotService, gotDomain, gotPort, gotTXT = instance, service, domain, port, text
		return nil, errors.New("no multicast here")
	}

	err := adv.Start(Record{Instance: "studio", Port: 6001, APIVersion: "1.1.0"})
	require.Error(t, err)

	assert.Equal(t, "studio", gotInstance)
	assert.Equal(t, ServiceType, gotService)
	assert.Equal(t, ServiceDomain, gotDomain)
	assert.Equal(t, 6001, gotPort)
	assert.Equal(t, []string{"API_VERSION=1.1.0"}, gotTXT)
	assert.False(t, adv.Active())
}

func TestStartRejectsInvalidPort(t *testing.T) {
	called := false
	adv := NewZeroconfAdvertiser(nil, nil)
	adv.register = func(string, string, string, int, []string, []net.Interface) (*zeroconf.Server, error) {
		called = true
		return nil, nil
	}

	assert.Error(t, adv.Start(Record{Port: 0}))
	assert.Error(t, adv.Start(Record{Port: 70000}))
	assert.False(t, called)
}

func TestStartNilServerIsError(t *testing.T) {
	adv := NewZeroconfAdvertiser(nil, nil)
	adv.register = func(string, string, string, int, []string, []net.Interface) (*zeroconf.Server, error) {
		return nil, nil
	}
	assert.Error(t, adv.Start(Record{Port: 5672}))
	assert.False(t, adv.Active())
}

func TestStopWhenNotStarted(t *testing.T) {
	adv := NewZeroconfAdvertiser(nil, nil)
	assert.NotPanics(t, adv.Stop)
	assert.NotPanics(t, adv.Stop)
}

func TestEndpointFromEntry(t *testing.T) {
	entry := zeroconf.NewServiceEntry("studio", ServiceType, ServiceDomain)
	entry.Port = 5672
	entry.Text = []string{"foo=bar", "API_VERSION=1.1.0"}
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}

	ep, ok := endpointFromEntry(entry)
	require.True(t, ok)
	assert.Equal(t, "studio", ep.Instance)
	assert.Equal(t, "192.168.1.20", ep.Host)
	assert.Equal(t, 5672, ep.Port)
	assert.Equal(t, "1.1.0", ep.APIVersion)
	assert.Equal(t, "ws://192.168.1.20:5672/", ep.URL())
}

func TestEndpointFromEntryFallsBackToHostname(t *testing.T) {
	entry := zeroconf.NewServiceEntry("studio", ServiceType, ServiceDomain)
	entry.Port = 5672
	entry.HostName = "studio.local."

	ep, ok := endpointFromEntry(entry)
	require.True(t, ok)
	assert.Equal(t, "studio.local", ep.Host)

	_, ok = endpointFromEntry(zeroconf.NewServiceEntry("bare", ServiceType, ServiceDomain))
	assert.False(t, ok)
	_, ok = endpointFromEntry(nil)
	assert.False(t, ok)
}

func TestEndpointURLIPv6(t *testing.T) {
	ep := Endpoint{Host: "fe80::1", Port: 5672}
	assert.Equal(t, "ws://[fe80::1]:5672/", ep.URL())
}
