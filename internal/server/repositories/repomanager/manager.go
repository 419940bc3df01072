package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gideon/internal/dbx"
	"github.com/dmitrijs2005/gideon/internal/server/repositories/apikeys"
	"github.com/dmitrijs2005/gideon/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DB handle or transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	APIKeys(db dbx.DBTX) apikeys.Repository
}
