// Package database opens the server's sqlite database and migrates its schema.
//
// # Layout
//
//	database/
//	├── database.go      # Connection setup, migrations
//	└── users/           # Account lookups by id, email and token hash
//
// Book documents are not accessed through this package; the collection
// store works on the *gorm.DB directly:
//
//	db, err := database.NewDatabase("./spinestock.db")
//	store := collection.NewGormStore(db.DB)
//	usersRepo := users.NewRepository(db.DB)
package database
