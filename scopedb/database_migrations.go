package scopedb

import (
	"io/fs"
	"net/http"
	"sort"
	"time"

	"github.com/jswidler/tenantscope/errors"
	"github.com/jswidler/tenantscope/logger"
	migrate "github.com/rubenv/sql-migrate"
)

const dialect = "postgres"

var ErrDbMigrationFailed = errors.Sentinel("database migration failed")

// MigrateUp applies any pending migrations from the caller's migration
// source.  scopedb owns no tables of its own; fsys holds the consuming
// application's SQL files.
func (d *Db) MigrateUp(fsys fs.FS) error {
	logger.Default().Info().Msg("checking database is up to date")
	n, err := migrate.Exec(d.db.DB, dialect, migrationSource(fsys), migrate.Up)
	if err != nil {
		return errors.Wrap(ErrDbMigrationFailed, errors.WithCause(err))
	}

	if n > 0 {
		logger.Default().Info().Msgf("applied %d migrations", n)
	} else {
		logger.Default().Info().Msg("database was up to date")
	}
	return nil
}

// MigrateDown rolls back at most max migrations.  USE CAREFULLY!!!  Pass 0
// for no limit.
func (d *Db) MigrateDown(fsys fs.FS, max int) error {
	logger.Default().Info().Msg("rolling back database migrations")

	n, err := migrate.ExecMax(d.db.DB, dialect, migrationSource(fsys), migrate.Down, max)
	if err != nil {
		return errors.Wrap(ErrDbMigrationFailed, errors.WithCause(err))
	}
	if n > 0 {
		logger.Default().Info().Msgf("rolled back %d migrations", n)
	} else {
		logger.Default().Info().Msg("no migrations to roll back")
	}
	return nil
}

// MigrateStatus logs the state of every known migration.
func (d *Db) MigrateStatus(fsys fs.FS) error {
	migrations, err := migrationSource(fsys).FindMigrations()
	if err != nil {
		return errors.Wrap(ErrDbMigrationFailed, errors.WithCause(err))
	}

	records, err := migrate.GetMigrationRecords(d.db.DB, dialect)
	if err != nil {
		return errors.Wrap(ErrDbMigrationFailed, errors.WithCause(err))
	}

	// Combine both sides - a migration can exist in the source but not the
	// database, and vice versa.
	rowMap := make(map[string]*statusRow)
	rowList := make([]*statusRow, 0, len(migrations))

	for _, m := range migrations {
		rowMap[m.Id] = &statusRow{ID: m.Id}
		rowList = append(rowList, rowMap[m.Id])
	}
	for _, r := range records {
		if rowMap[r.Id] == nil {
			rowMap[r.Id] = &statusRow{ID: r.Id, MigrationFileMissing: true}
			rowList = append(rowList, rowMap[r.Id])
		}
		rowMap[r.Id].Migrated = true
		rowMap[r.Id].AppliedAt = r.AppliedAt
	}

	sort.Slice(rowList, func(i, j int) bool {
		return rowList[i].ID < rowList[j].ID
	})

	for _, r := range rowList {
		switch {
		case r.Migrated && r.MigrationFileMissing:
			logger.Default().Info().Msgf("%s: %s (migration file missing)", r.ID, r.AppliedAt.String())
		case r.Migrated:
			logger.Default().Info().Msgf("%s: %s", r.ID, r.AppliedAt.String())
		default:
			logger.Default().Info().Msgf("%s: not applied", r.ID)
		}
	}
	return nil
}

func migrationSource(fsys fs.FS) *migrate.HttpFileSystemMigrationSource {
	return &migrate.HttpFileSystemMigrationSource{
		FileSystem: http.FS(fsys),
	}
}

type statusRow struct {
	ID                   string
	Migrated             bool
	MigrationFileMissing bool
	AppliedAt            time.Time
}
