// Package httpserver provides the HTTP server shared by the ledger node and
// the channel gateway.
//
// BaseServer mounts the routes of any number of RouteRegistrar handlers and
// adds the standard operational endpoints:
//
//   - /livez: liveness, always 200 while the process serves
//   - /readyz: readiness, 503 while draining
//   - /drain and /undrain: toggle readiness for load balancers
//   - /debug: pprof, when enabled
//
// Application routes are logged with slog through the go-utils HTTP logger
// and may be wrapped with extra middlewares such as CORS.
//
// # Usage
//
//	func (h *MyHandler) RegisterRoutes(r chi.Router) {
//	    r.Get("/resource/{id}", h.handleGet)
//	}
//
//	srv, err := httpserver.New(cfg, handler)
//	if err != nil {
//	    return err
//	}
//	srv.RunInBackground()
//	defer srv.Shutdown()
package httpserver
