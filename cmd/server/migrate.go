package main

import (
	"crowdfund/internal/config"
	"crowdfund/internal/infrastructure/database"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newMigrateCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the MySQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			if c.Store.Driver != config.StoreMySQL {
				return errors.Errorf("migrate needs store.driver=%s, got %s", config.StoreMySQL, c.Store.Driver)
			}

			db, err := database.OpenMySQL(&c.MySQL)
			if err != nil {
				return err
			}
			defer database.Close(db)

			return database.Migrate(db)
		},
	}
}
