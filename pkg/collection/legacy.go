package collection

// LegacyCollections maps collection names used before role collections were
// introduced to the role collection that replaced them. It is static data for
// migration tooling; Resolve never consults it.
var LegacyCollections = map[string]string{
	"coder-memory":       RoleUniversal.CollectionName(),
	"coder":              RoleUniversal.CollectionName(),
	"backend-dev":        RoleBackend.CollectionName(),
	"frontend-dev":       RoleFrontend.CollectionName(),
	"financial-engineer": RoleQuant.CollectionName(),
	"quant":              RoleQuant.CollectionName(),
}

// LegacyTarget returns the replacement for a legacy collection name.
func LegacyTarget(name string) (string, bool) {
	target, ok := LegacyCollections[name]
	return target, ok
}
