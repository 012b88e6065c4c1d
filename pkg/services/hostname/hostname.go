// Package hostname implements a service that validates and canonicalises
// a domain name. It performs no lookups; only the name syntax is checked.
package hostname

import (
	"context"

	"github.com/kylerisse/bottled/pkg/service"
	"github.com/miekg/dns"
)

// Name is the registered name for this service.
const Name = "hostname"

// Canonicalize validates Name and returns its canonical fully qualified form.
type Canonicalize struct {
	Name string `service:"name,required"`
}

// Definition is the hostname service definition.
var Definition = service.MustDefine[Canonicalize](Name)

// Call fails with a reason when the name is not a valid domain name.
// On success the payload holds fqdn, labels, parts and absolute.
func (c *Canonicalize) Call(_ context.Context, _ service.Continuation) *service.Response {
	if c.Name == "" {
		return service.Failure(service.F("name", c.Name), service.F("reason", "name must not be empty"))
	}

	labels, ok := dns.IsDomainName(c.Name)
	if !ok {
		return service.Failure(service.F("name", c.Name), service.F("reason", "not a valid domain name"))
	}

	fqdn := dns.CanonicalName(c.Name)
	return service.Success(
		service.F("fqdn", fqdn),
		service.F("labels", labels),
		service.F("parts", dns.SplitDomainName(fqdn)),
		service.F("absolute", dns.IsFqdn(c.Name)),
	)
}

// Register adds the hostname service to reg.
func Register(reg *service.Registry) error {
	return reg.Register(Definition)
}
