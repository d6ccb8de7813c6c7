package driven

// LinkIndex is the read-only link-graph oracle of the host application.
type LinkIndex interface {
	// ResolveLink resolves link text written in fromPath to a document path.
	// Returns false when the link does not point at an existing document.
	ResolveLink(link, fromPath string) (string, bool)

	// Backlinks returns every document linking to path, keyed by source path.
	// The values are the link targets hit inside each source.
	Backlinks(path string) map[string][]string
}
