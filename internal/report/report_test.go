package report

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/opdedupe/internal/apperr"
	"github.com/starford/opdedupe/internal/dedupe"
	"github.com/starford/opdedupe/internal/models"
	"github.com/starford/opdedupe/internal/normalize"
	"github.com/starford/opdedupe/internal/testutil"
)

func sampleGroups() []models.ResolvedGroup {
	norm := normalize.New(true)
	records := []models.Record{
		testutil.Login("old", "Example", "alice", "2024-01-01", "https://example.com/login"),
		testutil.Login("new", "Example, Inc", "alice", "2024-06-01", "https://www.example.com/login/", "https://example.com/alt"),
		testutil.Login("db1", "Dev DB", "root", "2024-01-01", "http://localhost:5432"),
		testutil.Login("db2", "dev db", "root", "2024-03-01", "http://localhost:5432"),
	}
	return dedupe.Resolve(dedupe.NewIndexer(norm).Index(records))
}

func rowActions(w *Writer, groups []models.ResolvedGroup) [][2]string {
	var out [][2]string
	h := w.Header()
	idIdx, actIdx := indexOf(h, "item_id"), indexOf(h, "keep_or_delete")
	if w.Schema() == SchemaExact {
		actIdx = indexOf(h, "action")
	}
	for _, r := range w.Rows(groups) {
		out = append(out, [2]string{r[idIdx], r[actIdx]})
	}
	return out
}

func changeActions(rep *Report) [][2]string {
	var out [][2]string
	for _, c := range rep.Changes {
		out = append(out, [2]string{c.ItemID, string(c.Action)})
	}
	return out
}

func indexOf(h []string, name string) int {
	for i, n := range h {
		if n == name {
			return i
		}
	}
	return -1
}

func TestRoundTrip_Multi(t *testing.T) {
	groups := sampleGroups()
	w := NewWriter(SchemaMulti, normalize.New(true))
	path := filepath.Join(t.TempDir(), "report.csv")

	n, err := w.WriteFile(path, groups)
	require.NoError(t, err)
	require.Positive(t, n)

	rep, err := LoadFile(path, testutil.Logger())
	require.NoError(t, err)
	assert.Equal(t, SchemaMulti, rep.Schema)
	assert.True(t, rep.HasURL)
	assert.Len(t, rep.Changes, n)
	assert.Equal(t, rowActions(w, groups), changeActions(rep))

	reasons := map[string]bool{}
	for _, c := range rep.Changes {
		reasons[c.Reason] = true
		assert.NotEmpty(t, c.GroupID)
	}
	assert.True(t, reasons["exact"])
	assert.True(t, reasons["local"])
	assert.True(t, reasons["domain"])
}

func TestRoundTrip_Exact(t *testing.T) {
	groups := sampleGroups()
	w := NewWriter(SchemaExact, normalize.New(true))
	data, n, err := w.Encode(groups)
	require.NoError(t, err)

	rep, err := Parse(data, testutil.Logger())
	require.NoError(t, err)
	assert.Equal(t, SchemaExact, rep.Schema)
	assert.Len(t, rep.Changes, n)
	assert.Equal(t, rowActions(w, groups), changeActions(rep))

	for _, c := range rep.Changes {
		assert.NotEqual(t, models.ActionReview, c.Action, "exact schema carries no domain groups")
	}
}

func TestExactSchema_URLIsTheMatchingOne(t *testing.T) {
	w := NewWriter(SchemaExact, normalize.New(true))
	data, _, err := w.Encode(sampleGroups())
	require.NoError(t, err)
	assert.Contains(t, string(data), "full_url,https://example.com/login,alice,new,\"Example, Inc\",https://www.example.com/login/,")
	assert.Contains(t, string(data), "local_app,dev db,root,db2")
}

func TestMultiSchema_PrimaryURLIsFirst(t *testing.T) {
	w := NewWriter(SchemaMulti, normalize.New(true))
	data, _, err := w.Encode(sampleGroups())
	require.NoError(t, err)

	rep, err := Parse(data, testutil.Logger())
	require.NoError(t, err)
	for _, c := range rep.Changes {
		if c.ItemID == "new" {
			assert.Equal(t, "https://www.example.com/login/", c.URL)
			assert.Equal(t, "Example, Inc", c.Title)
		}
	}
}

func TestLoad_MissingColumnIsSchemaError(t *testing.T) {
	_, err := Parse([]byte("item_id,title,url\nx,y,z\n"), testutil.Logger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrReportSchema))

	var se *apperr.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"keep_or_delete"}, se.Missing)

	_, err = Parse([]byte("keep_or_delete,url\nKEEP,z\n"), testutil.Logger())
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"item_id", "title"}, se.Missing)
}

func TestLoad_EmptyFileIsSchemaError(t *testing.T) {
	_, err := Parse(nil, testutil.Logger())
	assert.True(t, errors.Is(err, apperr.ErrReportSchema))
}

func TestLoad_NormalizesActionsAndSkipsBlankIDs(t *testing.T) {
	doc := "\ufeffitem_id, title ,action,url\n" +
		"a,A, keep ,https://a.com\n" +
		",orphan,DELETE,\n" +
		"b,B,delete,\n" +
		"c,C,Archive,\n" +
		"d,D,rename,\n"
	rep, err := Parse([]byte(doc), testutil.Logger())
	require.NoError(t, err)
	assert.Equal(t, SchemaExact, rep.Schema)
	assert.Equal(t, 1, rep.Skipped)
	require.Len(t, rep.Changes, 4)

	assert.Equal(t, models.ActionKeep, rep.Changes[0].Action)
	assert.Equal(t, "https://a.com", rep.Changes[0].URL)
	assert.Equal(t, models.ActionDelete, rep.Changes[1].Action)
	assert.Equal(t, models.ActionArchive, rep.Changes[2].Action)
	assert.Equal(t, models.Action("RENAME"), rep.Changes[3].Action)
	assert.False(t, rep.Changes[3].Action.Known())
}

func TestMultiSchema_URLWithCommaSurvivesReload(t *testing.T) {
	norm := normalize.New(true)
	records := []models.Record{
		testutil.Login("x", "Maps", "alice", "2024-01-01", "https://maps.example.com/@52.1,4.3,12z", "https://example.com/alt"),
		testutil.Login("y", "Maps", "alice", "2024-06-01", "https://maps.example.com/@52.1,4.3,12z"),
	}
	data, _, err := NewWriter(SchemaMulti, norm).Encode(dedupe.Resolve(dedupe.NewIndexer(norm).Index(records)))
	require.NoError(t, err)

	rep, err := Parse(data, testutil.Logger())
	require.NoError(t, err)
	require.NotEmpty(t, rep.Changes)
	for _, c := range rep.Changes {
		assert.Equal(t, "https://maps.example.com/@52.1,4.3,12z", c.URL, "item %s", c.ItemID)
	}
}

func TestPrimaryURL(t *testing.T) {
	assert.Equal(t, "https://a.com", primaryURL(" https://a.com, https://b.com"))
	assert.Equal(t, "https://a.com/x,y", primaryURL("https://a.com/x,y, https://b.com"))
	assert.Equal(t, "", primaryURL(""))
}

func TestLoad_NoURLColumns(t *testing.T) {
	rep, err := Parse([]byte("item_id,title,keep_or_delete\na,A,KEEP\n"), testutil.Logger())
	require.NoError(t, err)
	assert.False(t, rep.HasURL)
	assert.Empty(t, rep.Changes[0].URL)
}

func TestLoad_ShortRowsTolerated(t *testing.T) {
	rep, err := Parse([]byte("item_id,title,keep_or_delete,urls\na,A\n"), testutil.Logger())
	require.NoError(t, err)
	require.Len(t, rep.Changes, 1)
	assert.Equal(t, models.Action(""), rep.Changes[0].Action)
}

func TestParseSchema(t *testing.T) {
	s, err := ParseSchema("")
	require.NoError(t, err)
	assert.Equal(t, SchemaMulti, s)

	s, err = ParseSchema(" EXACT ")
	require.NoError(t, err)
	assert.Equal(t, SchemaExact, s)

	_, err = ParseSchema("xml")
	assert.Error(t, err)
}

func TestMultiHeaderOrder(t *testing.T) {
	assert.Equal(t, "group_id,reason,key,keep_or_delete,item_id,title,vault,urls,username,last_updated,is_newer",
		strings.Join(MultiHeader, ","))
}
