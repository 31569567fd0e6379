package domain

// ProductKey identifies a product in the internal catalog. Keys form a
// closed set configured at startup.
type ProductKey string

// FileRef is an opaque handle into the file store plus the filename shown
// to the customer. The relay never inspects file contents.
type FileRef struct {
	Key      string `json:"key" yaml:"key"`
	Filename string `json:"filename" yaml:"filename"`
}

// ProductBundle is what one purchase delivers: files in delivery order and
// the welcome message template. Read-only after startup.
type ProductBundle struct {
	Files           []FileRef
	WelcomeTemplate string
}
