// Package debugserver mounts a local, no-dial-out SQL browser over the
// index cache database for operator debugging.
package debugserver

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// Mount attaches a "/debug/" route tree to mux, including a live SQL
// browser at /debug/tailsql/ over db. tsweb.Debugger is used purely as a
// local debug-route registrar; nothing here dials out to a tailnet or
// coordination server.
func Mount(mux *http.ServeMux, db *sql.DB) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("debugserver: create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://index-cache", db, &tailsql.DBOptions{
		Label: "Frame index cache",
	})
	debug.Handle("tailsql/", "SQL live debugging over the frame index cache", tsql.NewMux())
	return nil
}
