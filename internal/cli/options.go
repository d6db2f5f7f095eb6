package cli

type Options struct {
	// Type is the document type the session starts on.
	Type string
	JSON bool
	// Top caps picker loads. Zero uses the configured page size.
	Top  int
	Args []string
}
