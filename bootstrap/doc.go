// Package bootstrap runs a recpipe process: it validates the typed config,
// initializes logging, starts managed services (artifact store, worker
// pool) in order, runs configure and lifecycle hooks, prints a startup
// summary and stops everything in reverse order on exit or signal.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.Services.Register(store)
//	app.Services.Register(pool)
//	err = app.RunTask(ctx, runBatch)
package bootstrap
