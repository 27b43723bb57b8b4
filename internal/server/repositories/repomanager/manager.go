package repomanager

import (
	"context"
	"database/sql"

	"github.com/coastwatch/hazardplatform/internal/dbx"
	"github.com/coastwatch/hazardplatform/internal/server/repositories/accounts"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
}
