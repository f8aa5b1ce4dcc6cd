// Package database provides the data access layer for the library.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations, snapshots
//	├── books/           # Book CRUD, favourites, read percentage
//	├── chapters/        # Chapter reads, favourites, mark-read transaction
//	├── audio/           # Per-line synthesized audio
//	├── jobs/            # Generation and backup progress tracking
//	├── backups/         # Backup history
//	└── settings/        # Application settings
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./AutoBooksDB.db")
//
//	booksRepo := books.NewRepository(db.DB)
//	chaptersRepo := chapters.NewRepository(db.DB)
//
//	book, err := booksRepo.Get(1)
//	changed, err := chaptersRepo.MarkRead(book.ID, 3)
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Add compile-time interface checks where a consumer defines one
package database
