package ports

const (
	DefaultListLimit = 100     // Listing page size when the client does not ask for one
	MaxListLimit     = 1000    // Hard cap on listing page size
	MaxBodyBytes     = 1 << 20 // Request bodies larger than this are rejected
)
