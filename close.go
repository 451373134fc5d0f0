package rowdb

// Close releases the memory held by the database. Every later operation
// fails with ErrClosed. Close is idempotent.
func (db *DB) Close() error {
	if db == nil || db.closed {
		return nil
	}
	db.closed = true
	db.rows.Release()
	db.pool.Release()
	return nil
}
