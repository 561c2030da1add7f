package alg

import "github.com/amsen20/argos/internal/model"

// TrustFunc resolves the trust a server offers. Implementations are pure
// lookups over the snapshot's trust table.
type TrustFunc func(snapshot *model.Snapshot, server *model.EdgeServer) model.TrustLevel

// RequirementFunc resolves the minimum trust a microservice needs.
type RequirementFunc func(service *model.Microservice) model.TrustLevel

// ServerTrust resolves trust at the finest granularity available: the
// server's own entry, then its provider's, then MinTrust.
func ServerTrust(snapshot *model.Snapshot, server *model.EdgeServer) model.TrustLevel {
	if level, ok := snapshot.Trust.Servers[server.Id]; ok {
		return level
	}

	if server.Provider != nil {
		if level, ok := snapshot.Trust.Providers[server.Provider.Id]; ok {
			return level
		}
	}

	return model.MinTrust
}

// RegionTrust gives every server of a provider's region the same score:
// the region's declared entry, otherwise the floored mean of the server
// level trust of the region's servers.
func RegionTrust(snapshot *model.Snapshot, server *model.EdgeServer) model.TrustLevel {
	region := model.RegionOf(server)
	if level, ok := snapshot.Trust.Regions[region]; ok {
		return level
	}

	var sum, count int
	for _, other := range snapshot.Servers {
		if model.RegionOf(other) != region {
			continue
		}

		sum += int(ServerTrust(snapshot, other))
		count++
	}

	if count == 0 {
		return model.MinTrust
	}

	// integer division floors for non negative sums
	return model.TrustLevel(sum / count)
}

// IgnoreTrust makes every server trusted enough, used by latency only
// strategies.
func IgnoreTrust(snapshot *model.Snapshot, server *model.EdgeServer) model.TrustLevel {
	return model.TrustLevel(int(^uint(0) >> 1))
}

func ServiceRequirement(service *model.Microservice) model.TrustLevel {
	return service.PrivacyRequirement
}

// ApplicationRequirement applies the application's single declared
// requirement to all of its microservices.
func ApplicationRequirement(service *model.Microservice) model.TrustLevel {
	if service.Application == nil {
		return service.PrivacyRequirement
	}

	return service.Application.PrivacyRequirement
}

func NoRequirement(service *model.Microservice) model.TrustLevel {
	return model.MinTrust
}
