// Package discovery advertises the HTTP transport over mDNS.
package discovery

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
)

const (
	defaultService  = "_mcp-http._tcp"
	defaultDomain   = "local."
	defaultInstance = "ordinals-mcp"
)

// AnnounceOptions define the metadata broadcast for this service.
type AnnounceOptions struct {
	Instance string
	Service  string
	Domain   string
	Port     int
	Text     map[string]string
}

// Announcer manages the lifetime of an mDNS advertisement.
type Announcer struct {
	server *zeroconf.Server
	once   sync.Once
}

// NewAnnouncer publishes an mDNS record and returns a controller.
func NewAnnouncer(opts AnnounceOptions) (*Announcer, error) {
	opts = opts.withDefaults()
	if opts.Port <= 0 {
		return nil, fmt.Errorf("invalid port %d", opts.Port)
	}

	server, err := zeroconf.Register(opts.Instance, opts.Service, opts.Domain, opts.Port, txtRecords(opts.Text), nil)
	if err != nil {
		return nil, fmt.Errorf("register mdns service: %w", err)
	}
	return &Announcer{server: server}, nil
}

// Stop removes the advertisement. It is safe to call more than once.
func (a *Announcer) Stop() {
	a.once.Do(func() {
		if a.server != nil {
			a.server.Shutdown()
		}
	})
}

// txtRecords renders key=value pairs in key order, skipping blank keys.
func txtRecords(text map[string]string) []string {
	keys := make([]string, 0, len(text))
	for k := range text {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	records := make([]string, 0, len(keys))
	for _, k := range keys {
		records = append(records, fmt.Sprintf("%s=%s", strings.TrimSpace(k), strings.TrimSpace(text[k])))
	}
	return records
}

func (o AnnounceOptions) withDefaults() AnnounceOptions {
	if o.Service == "" {
		o.Service = defaultService
	}
	if o.Domain == "" {
		o.Domain = defaultDomain
	}
	o.Instance = strings.TrimSpace(o.Instance)
	if o.Instance == "" {
		if hostname, _ := os.Hostname(); strings.TrimSpace(hostname) != "" {
			o.Instance = hostname
		} else {
			o.Instance = defaultInstance
		}
	}
	if o.Text == nil {
		o.Text = map[string]string{}
	}
	return o
}
