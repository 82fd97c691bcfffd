package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsearch/source"
	"github.com/hupe1980/vecsearch/source/sourcetest"
)

func TestStore(t *testing.T) {
	dsn := os.Getenv("VECSEARCH_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VECSEARCH_POSTGRES_DSN not set")
	}

	sourcetest.Run(t, func(t *testing.T) source.Store {
		ctx := context.Background()

		s, err := Open(ctx, dsn)
		require.NoError(t, err)
		require.NoError(t, s.Truncate(ctx))

		return s
	})
}
