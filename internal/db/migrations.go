package db

// RunBookMigrations prepares the catalog store.
func RunBookMigrations(db *DB) error {
	return db.AutoMigrate(&Book{})
}

// RunUserMigrations prepares the account store, which also keeps sessions.
func RunUserMigrations(db *DB) error {
	return db.AutoMigrate(&User{}, &Session{})
}
