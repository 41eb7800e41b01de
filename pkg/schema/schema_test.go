package schema

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateTableCreatesAndMerges(t *testing.T) {
	s := New("test")
	assert.Equal(t, 1, s.Version)

	_, err := s.UpdateTable(&PartialTable{Name: "items", Columns: []Column{
		{Name: "a", DataType: TypeBigInt, Nullable: true},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Version)
	assert.True(t, s.HasTable("items"))

	// merging adds new columns and replaces altered ones in place
	_, err = s.UpdateTable(&PartialTable{Name: "items", Columns: []Column{
		{Name: "a", DataType: TypeBigInt, Nullable: false},
		{Name: "b", DataType: TypeText, Nullable: true},
	}})
	require.NoError(t, err)

	cols := s.GetTableColumns("items")
	require.Len(t, cols, 2)
	assert.Equal(t, "a", cols[0].Name)
	assert.False(t, cols[0].Nullable)
	assert.Equal(t, "b", cols[1].Name)
}

func TestUpdateTableLinksParent(t *testing.T) {
	s := New("test")
	_, err := s.UpdateTable(&PartialTable{Name: "items__tags", Parent: "items"})
	require.NoError(t, err)

	table, ok := s.Table("items__tags")
	require.True(t, ok)
	assert.Equal(t, "items", table.Parent)
}

func TestUpdateTableRejectsUnnamed(t *testing.T) {
	s := New("test")
	_, err := s.UpdateTable(&PartialTable{})
	assert.Error(t, err)
}

func TestFilterRowExcludePatterns(t *testing.T) {
	s := New("test")
	s.Settings.ExcludePatterns = map[string][]string{
		"items": {"^secret", "_internal$"},
	}

	row := NewRow()
	row.Set("id", 1)
	row.Set("secret_token", "x")
	row.Set("debug_internal", "y")

	out := s.FilterRow("items", row)
	assert.Equal(t, []string{"id"}, out.Keys())
}

func TestFilterRowNoPatterns(t *testing.T) {
	s := New("test")
	row := NewRow()
	row.Set("id", 1)

	out := s.FilterRow("items", row)
	assert.Equal(t, []string{"id"}, out.Keys())
}

func TestSeenData(t *testing.T) {
	s := New("test")
	assert.False(t, s.HasTableSeenData("items"))

	_, err := s.UpdateTable(&PartialTable{Name: "items"})
	require.NoError(t, err)
	assert.False(t, s.HasTableSeenData("items"))

	s.SetTableSeenData("items")
	assert.True(t, s.HasTableSeenData("items"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New("shop")
	_, err := s.UpdateTable(&PartialTable{Name: "items", Columns: []Column{
		{Name: "id", DataType: TypeBigInt, Nullable: false},
		{Name: "ts", DataType: TypeTimestamp, Nullable: true, Precision: 6},
	}})
	require.NoError(t, err)
	_, err = s.UpdateTable(&PartialTable{Name: "items__tags", Parent: "items", Columns: []Column{
		{Name: "value", DataType: TypeText, Nullable: true},
	}})
	require.NoError(t, err)
	require.NoError(t, s.SetTableContract("items", Contract{Tables: ModeFreeze, Columns: ModeEvolve, DataType: ModeEvolve}))
	s.SetTableSeenData("items")

	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, s.SaveFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "shop", loaded.Name)
	assert.Equal(t, s.Version, loaded.Version)
	assert.Equal(t, s.GetTableColumns("items"), loaded.GetTableColumns("items"))
	assert.True(t, loaded.HasTableSeenData("items"))
	assert.False(t, loaded.HasTableSeenData("items__tags"))

	table, ok := loaded.Table("items__tags")
	require.True(t, ok)
	assert.Equal(t, "items", table.Parent)
	assert.Equal(t, ModeFreeze, loaded.ResolveContractSettingsForTable("items").Tables)
}
