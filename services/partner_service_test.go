package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePartners(t *testing.T) {
	partners, err := ParsePartners([]byte(`
partners:
  - code: gov01
    name: Dinas Koperasi
    is_government: true
  - code: " biz02 "
    name: Mitra Usaha
`))
	require.NoError(t, err)
	require.Len(t, partners, 2)
	assert.Equal(t, "GOV01", partners[0].Code)
	assert.True(t, partners[0].IsGovernment)
	assert.Equal(t, "BIZ02", partners[1].Code)
	assert.False(t, partners[1].IsGovernment)
}

func TestParsePartners_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing code":   "partners:\n  - name: Nameless\n",
		"missing name":   "partners:\n  - code: X1\n",
		"duplicate code": "partners:\n  - {code: x1, name: A}\n  - {code: X1, name: B}\n",
		"not yaml":       "partners: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePartners([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadPartnersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partners.yaml")
	require.NoError(t, os.WriteFile(path, []byte("partners:\n  - {code: p1, name: Partner One}\n"), 0o600))

	partners, err := LoadPartnersFile(path)
	require.NoError(t, err)
	require.Len(t, partners, 1)

	_, err = LoadPartnersFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
