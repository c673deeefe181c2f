package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// RoleTool is the TXT role advertised by tool servers.
const RoleTool = "tool"

// Instance is one advertised server seen while browsing.
type Instance struct {
	Name     string            `json:"instance"`
	Host     string            `json:"host"`
	Port     int               `json:"port"`
	Address  string            `json:"address"`
	Role     string            `json:"role"`
	LastSeen time.Time         `json:"last_seen"`
	Text     map[string]string `json:"text"`
}

// BrowseOptions control a one-shot browse.
type BrowseOptions struct {
	Service string
	Domain  string
	// RolesAll disables the tool-role filter.
	RolesAll bool
}

// Browse listens for advertisements until ctx is done and returns the
// instances seen, sorted by name. The caller bounds the browse with a deadline.
func Browse(ctx context.Context, opts BrowseOptions) ([]Instance, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}
	opts = opts.withDefaults()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("create resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	seen := make(map[string]Instance)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				inst := fromEntry(entry, time.Now())
				seen[inst.Name] = inst
			}
		}
	}()

	if err := resolver.Browse(ctx, opts.Service, opts.Domain, entries); err != nil {
		return nil, fmt.Errorf("browse %s: %w", opts.Service, err)
	}
	<-done

	return collect(seen, opts.RolesAll), nil
}

func collect(seen map[string]Instance, all bool) []Instance {
	out := make([]Instance, 0, len(seen))
	for _, inst := range seen {
		if !all && inst.Role != RoleTool {
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func fromEntry(entry *zeroconf.ServiceEntry, now time.Time) Instance {
	text := make(map[string]string, len(entry.Text))
	for _, txt := range entry.Text {
		if key, value, ok := strings.Cut(txt, "="); ok {
			text[key] = value
		}
	}
	return Instance{
		Name:     entry.Instance,
		Host:     entry.HostName,
		Port:     entry.Port,
		Address:  entryAddress(entry),
		Role:     roleOf(text),
		LastSeen: now,
		Text:     text,
	}
}

func entryAddress(entry *zeroconf.ServiceEntry) string {
	port := fmt.Sprint(entry.Port)
	switch {
	case len(entry.AddrIPv4) > 0:
		return net.JoinHostPort(entry.AddrIPv4[0].String(), port)
	case len(entry.AddrIPv6) > 0:
		return net.JoinHostPort(entry.AddrIPv6[0].String(), port)
	default:
		return net.JoinHostPort(entry.HostName, port)
	}
}

// roleOf treats a missing role as a tool server.
func roleOf(text map[string]string) string {
	role := strings.ToLower(strings.TrimSpace(text["role"]))
	if role == "" {
		return RoleTool
	}
	return role
}

func (o BrowseOptions) withDefaults() BrowseOptions {
	if o.Service == "" {
		o.Service = defaultService
	}
	if o.Domain == "" {
		o.Domain = defaultDomain
	}
	return o
}
