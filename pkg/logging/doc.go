// Package logging provides the process-wide structured logger for parajoin.
//
// The package wraps [log/slog] and exposes a single global logger. It is
// configured once by the command line (Init) and retrieved everywhere else
// via GetLogger. Query results are written to stdout, so every handler the
// package builds writes to stderr or to a file.
//
// # Initialisation
//
//	if err := logging.Init(logging.Config{Level: logging.LevelDebug}); err != nil {
//	    log.Fatal(err)
//	}
//
// If GetLogger is called before Init, a default INFO stderr logger is
// created lazily, so packages that log from tests are safe.
//
// # Context helpers
//
//	log := logging.WithQuery(queryID)        // adds query field
//	log := logging.WithRelation(relationID)  // adds relation field
//	log := logging.WithOperator("join")      // adds operator field
package logging
