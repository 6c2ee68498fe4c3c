package config

const (
	// DefaultDatabasePath is the default path for the server database
	DefaultDatabasePath = "./spinestock.db"

	// DefaultLookupBaseURL is the OpenLibrary API root
	DefaultLookupBaseURL = "https://openlibrary.org"

	// DefaultCoversBaseURL is the OpenLibrary cover image service root
	DefaultCoversBaseURL = "https://covers.openlibrary.org"

	DefaultUserAgent = "Spinestock/1.0 (https://github.com/mrlokans/spinestock)"
)
