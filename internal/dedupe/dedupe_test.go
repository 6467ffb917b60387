package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/opdedupe/internal/models"
	"github.com/starford/opdedupe/internal/normalize"
)

func login(id, title, user, updated string, urls ...string) models.Record {
	r := models.Record{ID: id, Title: title, URLs: urls, UpdatedAt: updated}
	if user != "" {
		r.Fields = []models.Field{{ID: "username", Purpose: "USERNAME", Label: "username", Value: user}}
	}
	return r
}

func resolveAll(records ...models.Record) []models.ResolvedGroup {
	return Resolve(NewIndexer(normalize.New(true)).Index(records))
}

func byReason(groups []models.ResolvedGroup, reason models.Reason) []models.ResolvedGroup {
	var out []models.ResolvedGroup
	for _, g := range groups {
		if g.Key.Reason() == reason {
			out = append(out, g)
		}
	}
	return out
}

func actions(g models.ResolvedGroup) map[string]models.Action {
	out := make(map[string]models.Action, len(g.Members))
	for _, m := range g.Members {
		out[m.Record.ID] = m.Action
	}
	return out
}

func TestScenarioA_ExactURLNewestKept(t *testing.T) {
	groups := resolveAll(
		login("old", "Example", "alice", "2024-01-01", "https://example.com/login"),
		login("new", "Example", "Alice", "2024-06-01", "https://www.example.com/login/"),
	)

	exact := byReason(groups, models.ReasonExact)
	require.Len(t, exact, 1)
	assert.Equal(t, "https://example.com/login", exact[0].Key.Value)
	assert.Equal(t, "alice", exact[0].Key.Username)
	require.Len(t, exact[0].Members, 2)
	assert.Equal(t, "new", exact[0].Members[0].Record.ID)
	assert.True(t, exact[0].Members[0].Newest)
	assert.Equal(t, map[string]models.Action{"new": models.ActionKeep, "old": models.ActionDelete}, actions(exact[0]))
}

func TestScenarioB_LocalHostGroupedByTitle(t *testing.T) {
	groups := resolveAll(
		login("a", "Dev DB", "root", "2024-01-01", "http://localhost:5432"),
		login("b", "dev db ", "root", "2024-03-01", "http://localhost:3306"),
	)

	require.Len(t, groups, 1, "local records must not form URL or domain groups")
	g := groups[0]
	assert.Equal(t, models.KeyLocal, g.Key.Kind)
	assert.Equal(t, models.ReasonLocal, g.Key.Reason())
	assert.Equal(t, "dev db", g.Key.Value)
	assert.Equal(t, map[string]models.Action{"b": models.ActionKeep, "a": models.ActionDelete}, actions(g))
}

func TestScenarioC_DomainGroupAllReview(t *testing.T) {
	groups := resolveAll(
		login("a", "Example A", "alice", "2024-01-01", "https://example.com/a"),
		login("b", "Example B", "alice", "2024-06-01", "https://example.com/b"),
	)

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, models.KeyDomain, g.Key.Kind)
	assert.Equal(t, "example.com", g.Key.Value)
	assert.Equal(t, map[string]models.Action{"a": models.ActionReview, "b": models.ActionReview}, actions(g))
}

func TestScenarioD_NoUsernameExcluded(t *testing.T) {
	noUser := login("x", "Example", "", "2024-01-01", "https://example.com/login")
	groups := resolveAll(
		noUser,
		login("y", "Example", "alice", "2024-01-01", "https://example.com/login"),
		login("z", "Example", "alice", "2024-02-01", "https://example.com/login"),
	)

	for _, g := range groups {
		for _, m := range g.Members {
			assert.NotEqual(t, "x", m.Record.ID, "record without username appeared in %s group", g.Key.Reason())
		}
	}
	assert.Empty(t, NewIndexer(normalize.New(true)).Keys(noUser))
}

func TestTopLevelUsernameAttributeGroups(t *testing.T) {
	a := models.Record{ID: "a", URLs: []string{"https://x.io"}, Username: "bob", HasUsername: true}
	b := models.Record{ID: "b", URLs: []string{"https://x.io/"}, Username: "BOB", HasUsername: true}
	groups := resolveAll(a, b)
	assert.Len(t, byReason(groups, models.ReasonExact), 1)
}

func TestNoSingletonGroups(t *testing.T) {
	groups := resolveAll(
		login("a", "A", "alice", "2024-01-01", "https://a.com/x", "https://b.com"),
		login("b", "B", "alice", "2024-01-02", "https://a.com/y"),
		login("c", "C", "carol", "2024-01-03", "https://a.com/x"),
	)
	for _, g := range groups {
		assert.GreaterOrEqual(t, len(g.Members), 2)
	}
	require.Len(t, groups, 1)
	assert.Equal(t, models.KeyDomain, groups[0].Key.Kind)
}

func TestExactGroupsHaveExactlyOneKeep(t *testing.T) {
	groups := resolveAll(
		login("1", "S", "u", "2024-01-01", "https://s.com/login"),
		login("2", "S", "u", "", "https://s.com/login"),
		login("3", "S", "u", "2024-05-01", "https://s.com/login"),
		login("4", "S", "u", "2023-05-01", "https://s.com/login"),
	)
	for _, g := range byReason(groups, models.ReasonExact) {
		keeps := 0
		for _, m := range g.Members {
			switch m.Action {
			case models.ActionKeep:
				keeps++
			case models.ActionDelete:
			default:
				t.Errorf("unexpected action %q in exact group", m.Action)
			}
		}
		assert.Equal(t, 1, keeps)
		assert.Equal(t, "3", g.Members[0].Record.ID)
		assert.Equal(t, "2", g.Members[len(g.Members)-1].Record.ID, "missing timestamp must rank oldest")
	}
}

func TestTiesKeepDiscoveryOrder(t *testing.T) {
	groups := resolveAll(
		login("first", "S", "u", "2024-01-01", "https://s.com"),
		login("second", "S", "u", "2024-01-01", "https://s.com"),
	)
	exact := byReason(groups, models.ReasonExact)
	require.Len(t, exact, 1)
	assert.Equal(t, "first", exact[0].Members[0].Record.ID)
	assert.Equal(t, models.ActionKeep, exact[0].Members[0].Action)
}

func TestRecordContributesOncePerBucket(t *testing.T) {
	rec := login("a", "A", "alice", "", "https://example.com/x", "https://www.example.com/x/", "https://example.com/y")
	keys := NewIndexer(normalize.New(true)).Keys(rec)

	count := map[models.KeyKind]int{}
	for _, k := range keys {
		count[k.Kind]++
	}
	assert.Equal(t, 2, count[models.KeyFullURL])
	assert.Equal(t, 1, count[models.KeyDomain])
}

func TestMultipleURLsContributeToSeveralGroups(t *testing.T) {
	groups := resolveAll(
		login("a", "A", "alice", "2024-01-01", "https://one.com/login", "https://two.com/login"),
		login("b", "B", "alice", "2024-02-01", "https://one.com/login"),
		login("c", "C", "alice", "2024-03-01", "https://two.com/login"),
	)
	assert.Len(t, byReason(groups, models.ReasonExact), 2)
	assert.Len(t, byReason(groups, models.ReasonDomain), 2)

	ids := make([]int, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, ids)
	assert.Equal(t, models.ReasonExact, groups[0].Key.Reason(), "exact groups come first")
}
