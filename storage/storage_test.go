package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/faculty"
	"github.com/trezcool/ratiba/storage"
	"github.com/trezcool/ratiba/tests"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown engine", func(t *testing.T) {
		conf := testutil.Config()
		conf.Database.Engine = "sqlite"
		_, err := storage.Open(ctx, conf, false)
		assert.EqualError(t, err, `unknown database engine "sqlite"`)
	})

	t.Run("memory", func(t *testing.T) {
		store, err := storage.Open(ctx, testutil.Config(), true)
		require.NoError(t, err)
		defer store.Close(ctx)

		assert.Equal(t, core.EngineMemory, store.Engine)
		assert.NotNil(t, store.Mem)
		assert.Nil(t, store.SQL)
		assert.Nil(t, store.Mongo)

		// repositories share one transactor
		now := time.Now().UTC()
		err = store.Tx.WithinTx(ctx, func(ctx context.Context) error {
			_, err := store.Faculty.CreateFaculty(ctx, faculty.Faculty{
				Name:      "Ada",
				Email:     "ada@test.cd",
				Roles:     []string{faculty.RoleFaculty},
				IsActive:  true,
				CreatedAt: now,
				UpdatedAt: now,
			})
			return err
		})
		require.NoError(t, err)

		fac, err := store.Faculty.GetFacultyByEmail(ctx, "ada@test.cd")
		require.NoError(t, err)
		assert.Equal(t, "Ada", fac.Name)
	})
}
