package observability

// Build identity, set with -ldflags "-X http-inspector/internal/infrastructure/observability.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "" // ISO8601 UTC
)

// BuildInfo is reported by the version endpoint.
func BuildInfo() map[string]string {
	return map[string]string{"name": "http-inspector", "version": Version, "commit": Commit, "date": Date}
}
