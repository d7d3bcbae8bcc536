package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/visit"
)

func openSeeded(t *testing.T) (*Store, *MemoryPersister) {
	t.Helper()
	p := NewMemoryPersister("sonar_visits")
	s, err := Open(context.Background(), p, visit.Seed(time.Now()))
	require.NoError(t, err)
	return s, p
}

func TestOpen_SeedsWhenAbsent(t *testing.T) {
	s, p := openSeeded(t)

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, "visit_001", s.List()[0].ID)

	// seed was persisted
	saved, found, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, saved, 4)
}

func TestOpen_RehydratesPersisted(t *testing.T) {
	p := NewMemoryPersister("sonar_visits")
	require.NoError(t, p.Save(context.Background(), []visit.Visit{{ID: "visit_x", Status: visit.StatusApproved}}))

	s, err := Open(context.Background(), p, visit.Seed(time.Now()))
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "visit_x", list[0].ID)
}

func TestOpen_EmptyPersistedListIsNotReseeded(t *testing.T) {
	p := NewMemoryPersister("sonar_visits")
	require.NoError(t, p.Save(context.Background(), []visit.Visit{}))

	s, err := Open(context.Background(), p, visit.Seed(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.NotNil(t, s.List())
}

func TestOpen_CorruptStateFails(t *testing.T) {
	p := NewMemoryPersister("sonar_visits")
	p.SetRaw([]byte(`{"not":"a list"}`))

	_, err := Open(context.Background(), p, visit.Seed(time.Now()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCorruptState))
}

func TestUpsert_InsertsAtHead(t *testing.T) {
	s, _ := openSeeded(t)

	err := s.Upsert(context.Background(), visit.Visit{ID: "visit_new", Status: visit.StatusApproved})
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 5)
	assert.Equal(t, "visit_new", list[0].ID)
	assert.Equal(t, "visit_001", list[1].ID)
}

func TestUpsert_ReplacesInPlace(t *testing.T) {
	s, _ := openSeeded(t)

	v, err := s.Get("visit_003")
	require.NoError(t, err)
	v.Status = visit.StatusPending
	v.Confidence = 10

	require.NoError(t, s.Upsert(context.Background(), v))
	require.NoError(t, s.Upsert(context.Background(), v))

	list := s.List()
	require.Len(t, list, 4)
	assert.Equal(t, "visit_003", list[2].ID)
	assert.Equal(t, 10, list[2].Confidence)
	assert.Equal(t, "visit_001", list[0].ID)
	assert.Equal(t, "visit_004", list[3].ID)
}

func TestUpsert_PersistsEveryMutation(t *testing.T) {
	s, p := openSeeded(t)

	require.NoError(t, s.Upsert(context.Background(), visit.Visit{ID: "visit_new"}))

	saved, _, err := p.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 5)
	assert.Equal(t, "visit_new", saved[0].ID)
}

func TestUpsert_SaveFailureLeavesListUnchanged(t *testing.T) {
	s, p := openSeeded(t)
	p.SaveErr = fmt.Errorf("disk full")

	err := s.Upsert(context.Background(), visit.Visit{ID: "visit_new"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInternal))
	assert.Equal(t, 4, s.Len())
}

func TestUpsert_RequiresID(t *testing.T) {
	s, _ := openSeeded(t)

	err := s.Upsert(context.Background(), visit.Visit{})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestGet_NotFound(t *testing.T) {
	s, _ := openSeeded(t)

	_, err := s.Get("visit_missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestList_ReturnsCopies(t *testing.T) {
	s, _ := openSeeded(t)

	list := s.List()
	list[0].PatientName = "changed"

	v, err := s.Get(list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Samuel Faseun", v.PatientName)
}

func TestSearchAndStats(t *testing.T) {
	s, _ := openSeeded(t)

	got := s.Search("diabetes")
	require.Len(t, got, 1)
	assert.Equal(t, "visit_003", got[0].ID)

	stats := s.Stats(time.Now())
	assert.Equal(t, 50, stats.TimeSavedMinutes)
}

func TestListPage(t *testing.T) {
	s, _ := openSeeded(t)

	out, err := s.ListPage(ListInput{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "visit_001", out.Items[0].ID)
	assert.Equal(t, 2, out.Pagination.Total)
	assert.False(t, out.Pagination.HasMore)

	out, err = s.ListPage(ListInput{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "visit_002", out.Items[0].ID)
	assert.True(t, out.Pagination.HasMore)

	out, err = s.ListPage(ListInput{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, out.Items)

	_, err = s.ListPage(ListInput{Status: "draft"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestNewVisitID(t *testing.T) {
	a := NewVisitID()
	b := NewVisitID()

	assert.True(t, strings.HasPrefix(a, "visit_"))
	assert.Len(t, a, len("visit_")+26)
	assert.NotEqual(t, a, b)
}

func TestMemoryPersister_Delete(t *testing.T) {
	_, p := openSeeded(t)

	require.NoError(t, p.Delete(context.Background()))
	_, found, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}
