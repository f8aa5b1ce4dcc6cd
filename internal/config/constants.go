package config

const (
	// DefaultDatabasePath is the default path for the library database
	DefaultDatabasePath = "./AutoBooksDB.db"

	// BackupFileName is the remote name of the uploaded database snapshot
	BackupFileName = "AutoBooksDB.db"

	// DefaultTTSLanguage is used when no language preference is stored
	DefaultTTSLanguage = "en-US"
)
