package versionedstore

import (
	"context"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
)

// Module provides a ready-to-use *Session built from the process's pooled
// *bun.DB.
var Module = fx.Module("versionedstore",
	fx.Provide(newSession),
)

func newSession(lc fx.Lifecycle, db *bun.DB) (*Session, error) {
	session, err := Open(context.Background(), db)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: session.Close})
	return session, nil
}
