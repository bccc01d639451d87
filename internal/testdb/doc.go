// Package testdb provides utilities for database integration tests.
//
// Each test runs in its own transaction, which is rolled back when the test
// completes, so tests never see each other's rows and need no cleanup:
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t) // skips when DATABASE_URL is unset
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        tasks := postgres.NewPostgresTaskStore(tx, nil)
//	        ...
//	    })
//	}
//
// The schema is brought up with the embedded goose migrations the first time
// a connection is handed out.
//
// Environment variables:
//
//   - DATABASE_URL: primary connection string
//   - ECOQ_TEST_DB_URL: alternative connection string
package testdb
