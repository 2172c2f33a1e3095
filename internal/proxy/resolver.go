package proxy

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/takenaka/sekimori/pkg/lru"
)

// HostResolver maps a client IP to a hostname for hostname-based rules.
type HostResolver interface {
	// Resolve returns the hostname for ip, or "" when reverse lookup
	// fails. Failure is not an error: IP-based rules still apply.
	Resolve(ctx context.Context, ip string) string
}

// DNSResolver resolves via reverse DNS with a TTL-bounded cache. Reverse
// lookups sit on the hot path of every request, so answers are reused.
type DNSResolver struct {
	resolver *net.Resolver
	cache    *lru.Cache[string, string]
}

const dnsCacheCapacity = 1024

// NewDNSResolver creates a caching reverse-DNS resolver. Negative answers
// are cached too, under the same TTL.
func NewDNSResolver(ttl time.Duration) *DNSResolver {
	return &DNSResolver{
		resolver: net.DefaultResolver,
		cache:    lru.New[string, string](dnsCacheCapacity, ttl),
	}
}

// Cache exposes the underlying cache for metrics collection.
func (r *DNSResolver) Cache() *lru.Cache[string, string] {
	return r.cache
}

func (r *DNSResolver) Resolve(ctx context.Context, ip string) string {
	if host, ok := r.cache.Get(ip); ok {
		return host
	}

	host := ""
	names, err := r.resolver.LookupAddr(ctx, ip)
	if err == nil && len(names) > 0 {
		host = strings.TrimSuffix(names[0], ".")
	}

	r.cache.Set(ip, host)
	return host
}

// noResolver disables hostname resolution; hostname rules never match.
type noResolver struct{}

// NewNoResolver creates a resolver that always answers with "".
func NewNoResolver() HostResolver {
	return noResolver{}
}

func (noResolver) Resolve(context.Context, string) string {
	return ""
}
