package model

// RegionKey identifies the servers a provider operates in one region.
type RegionKey struct {
	ProviderId int
	Region     string
}

// TrustTable is the seed's trust mapping. It is never mutated after the
// snapshot is built, so clones share it.
type TrustTable struct {
	Servers   map[int]TrustLevel
	Providers map[int]TrustLevel
	Regions   map[RegionKey]TrustLevel
}

func NewTrustTable() *TrustTable {
	return &TrustTable{
		Servers:   make(map[int]TrustLevel),
		Providers: make(map[int]TrustLevel),
		Regions:   make(map[RegionKey]TrustLevel),
	}
}

func RegionOf(server *EdgeServer) RegionKey {
	key := RegionKey{Region: server.Region}
	if server.Provider != nil {
		key.ProviderId = server.Provider.Id
	}

	return key
}
