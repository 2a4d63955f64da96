package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/meikuraledutech/neurons/internal/storetest"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "neurons.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	storetest.Run(t, s)
}
