package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreview(t *testing.T) {
	svc, _, _ := newTestService(t)

	t.Run("structure and detection", func(t *testing.T) {
		path := stageCSV(t, svc, "rides.csv", ridesCSV)

		p, err := svc.Preview(path, ImportRides)
		require.NoError(t, err)

		require.Equal(t, 2, p.TotalRows)
		require.Equal(t, []string{"data", "cliente", "motorista", "cidade", "status", "valor"}, p.Columns)
		require.Len(t, p.SampleData, 2)
		require.Equal(t, "Maria", p.SampleData[0]["cliente"])

		require.Equal(t, "cliente", p.DetectedMapping["usuario_nome"])
		require.Equal(t, "cidade", p.DetectedMapping["municipio"])

		require.Equal(t, []string{"data", "usuario_nome", "motorista_nome", "municipio", "status"}, p.RequiredFields)
		require.Contains(t, p.OptionalFields, "valor")
	})

	t.Run("sample capped", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("data,cliente\n")
		for i := 0; i < 20; i++ {
			b.WriteString("2025-01-15,Maria\n")
		}
		path := stageCSV(t, svc, "many.csv", b.String())

		p, err := svc.Preview(path, ImportRides)
		require.NoError(t, err)

		require.Equal(t, 20, p.TotalRows)
		require.Len(t, p.SampleData, 5)
	})

	t.Run("unknown type", func(t *testing.T) {
		path := stageCSV(t, svc, "rides.csv", ridesCSV)

		_, err := svc.Preview(path, "faturas")
		require.ErrorIs(t, err, ErrUnknownImportType)
	})

	t.Run("unstaged path rejected", func(t *testing.T) {
		_, err := svc.Preview("/etc/passwd", ImportRides)
		require.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("empty file", func(t *testing.T) {
		path := stageCSV(t, svc, "empty.csv", "data,cliente\n")

		_, err := svc.Preview(path, ImportRides)
		require.ErrorIs(t, err, ErrEmptyFile)
	})
}

func TestBuildTemplate(t *testing.T) {
	for _, typ := range ImportTypes() {
		t.Run(string(typ), func(t *testing.T) {
			data, name, err := BuildTemplate(typ)
			require.NoError(t, err)
			require.NotEmpty(t, data)
			require.Equal(t, "template_"+string(typ)+".xlsx", name)
		})
	}

	t.Run("unknown type", func(t *testing.T) {
		_, _, err := BuildTemplate("faturas")
		require.ErrorIs(t, err, ErrUnknownImportType)
	})
}
