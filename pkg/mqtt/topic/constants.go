package topic

// Standard MQTT wildcard definitions.
const (
	// Wildcard is the single-level wildcard "+".
	// Example: "latest_faces/+" matches "latest_faces/3".
	Wildcard = "+"

	// MultiWildcard is the multi-level wildcard "#". It must be the last level of a filter.
	MultiWildcard = "#"

	// Separator splits topic levels and store path segments alike.
	Separator = "/"
)
