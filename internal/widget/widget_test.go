package widget

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"schedwidget/internal/model"
)

// memStore is an in-memory backend that records calls.
type memStore struct {
	mu      sync.Mutex
	items   []model.Item
	nextID  int
	listErr error
	addErr  error
	rmErr   error

	lists, adds, removes int
}

func (m *memStore) List(context.Context) ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]model.Item, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *memStore) Add(_ context.Context, f model.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adds++
	if m.addErr != nil {
		return m.addErr
	}
	m.nextID++
	m.items = append(m.items, model.Item{ID: strconv.Itoa(m.nextID), Name: f.Name, Date: f.Date, Time: f.Time, Description: f.Description})
	return nil
}

func (m *memStore) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removes++
	if m.rmErr != nil {
		return m.rmErr
	}
	for i, it := range m.items {
		if it.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func yes(string) bool { return true }
func no(string) bool  { return false }

func TestHandleResponseShowsPopup(t *testing.T) {
	w := New(&memStore{})
	eff := w.HandleResponse("Sure, schedule/Dentist/2024-05-01/09:30/Annual checkup done.")

	require.NotNil(t, eff.DisplayHTML)
	require.Equal(t, "Sure, ", *eff.DisplayHTML)
	require.True(t, eff.Popup.Visible)
	require.Equal(t, model.Suggestion{Name: "Dentist", Date: "2024-05-01", Time: "09:30", Description: "Annual checkup done."}, *eff.Popup.Pending)
	require.False(t, eff.Requested)
}

func TestHandleResponseWithoutHintKeepsPopup(t *testing.T) {
	w := New(&memStore{})
	eff := w.HandleResponse("<b>hello</b>")
	require.Equal(t, "&lt;b&gt;hello&lt;/b&gt;", *eff.DisplayHTML)
	require.False(t, eff.Popup.Visible)
}

func TestConfirmWithoutSuggestionIssuesNoCall(t *testing.T) {
	st := &memStore{}
	w := New(st)
	eff := w.ConfirmSuggestion(context.Background())
	require.False(t, eff.Requested)
	require.Zero(t, st.adds)
	require.Zero(t, st.lists)
}

func TestConfirmAddsAndRefreshes(t *testing.T) {
	st := &memStore{}
	w := New(st)
	w.HandleResponse("schedule/Gym/2024-05-02/07:00/legs")

	eff := w.ConfirmSuggestion(context.Background())
	require.NoError(t, eff.Err)
	require.True(t, eff.Requested)
	require.True(t, eff.ListChanged)
	require.False(t, eff.Popup.Visible)
	require.Equal(t, []model.Item{{ID: "1", Name: "Gym", Date: "2024-05-02", Time: "07:00", Description: "legs"}}, w.Snapshot())
}

func TestConfirmFailureKeepsPopup(t *testing.T) {
	st := &memStore{addErr: errors.New("500")}
	w := New(st)
	w.HandleResponse("schedule/Gym/2024-05-02/07:00/legs")

	eff := w.ConfirmSuggestion(context.Background())
	require.Error(t, eff.Err)
	require.True(t, eff.Popup.Visible)
	require.Zero(t, st.lists)
}

func TestSubmitFormValidation(t *testing.T) {
	cases := []model.Fields{
		{Date: "2024-05-01", Time: "09:00"},
		{Name: "x", Time: "09:00"},
		{Name: "x", Date: "2024-05-01"},
		{},
	}
	for _, f := range cases {
		st := &memStore{}
		w := New(st)
		eff := w.SubmitForm(context.Background(), f)
		require.ErrorIs(t, eff.Err, ErrValidation)
		require.NotEmpty(t, eff.Alert)
		require.False(t, eff.Requested)
		require.Zero(t, st.adds)
	}
}

func TestSubmitFormDescriptionOptional(t *testing.T) {
	st := &memStore{}
	w := New(st)
	eff := w.SubmitForm(context.Background(), model.Fields{Name: "x", Date: "2024-05-01", Time: "09:00"})
	require.NoError(t, eff.Err)
	require.True(t, eff.ResetForm)
	require.True(t, eff.ListChanged)
	require.Equal(t, 1, st.adds)
}

func TestSubmitFormFailureKeepsForm(t *testing.T) {
	st := &memStore{addErr: errors.New("down")}
	w := New(st)
	eff := w.SubmitForm(context.Background(), model.Fields{Name: "x", Date: "2024-05-01", Time: "09:00"})
	require.Error(t, eff.Err)
	require.False(t, eff.ResetForm)
	require.True(t, eff.Requested)
}

// listDownStore accepts writes but cannot list.
type listDownStore struct {
	*memStore
}

func (listDownStore) List(context.Context) ([]model.Item, error) {
	return nil, errors.New("offline")
}

func TestRefreshFailureAfterChangeIsNotAChangeFailure(t *testing.T) {
	st := listDownStore{&memStore{}}
	w := New(st)

	eff := w.SubmitForm(context.Background(), model.Fields{Name: "x", Date: "2024-05-01", Time: "09:00"})
	require.NoError(t, eff.Err)
	require.Error(t, eff.RefreshErr)
	require.True(t, eff.Requested)
	require.True(t, eff.ResetForm)
	require.False(t, eff.ListChanged)
	require.Equal(t, 1, st.adds)

	w.HandleResponse("schedule/Gym/2024-05-02/07:00/legs")
	eff = w.ConfirmSuggestion(context.Background())
	require.NoError(t, eff.Err)
	require.Error(t, eff.RefreshErr)
	require.False(t, eff.Popup.Visible)
	require.Equal(t, 2, st.adds)

	eff = w.Delete(context.Background(), "1", ConfirmFunc(yes))
	require.NoError(t, eff.Err)
	require.Error(t, eff.RefreshErr)
	require.Equal(t, 1, st.removes)
}

func TestDeleteOnlyWhenConfirmed(t *testing.T) {
	st := &memStore{items: []model.Item{{ID: "1", Name: "a"}}}
	w := New(st)
	w.Refresh(context.Background())
	lists := st.lists

	eff := w.Delete(context.Background(), "1", ConfirmFunc(no))
	require.False(t, eff.Requested)
	require.Zero(t, st.removes)
	require.Equal(t, lists, st.lists)
	require.Len(t, w.Snapshot(), 1)

	eff = w.Delete(context.Background(), "1", nil)
	require.False(t, eff.Requested)
	require.Zero(t, st.removes)

	var prompt string
	eff = w.Delete(context.Background(), "1", ConfirmFunc(func(p string) bool { prompt = p; return true }))
	require.NoError(t, eff.Err)
	require.Equal(t, DeletePrompt, prompt)
	require.Equal(t, 1, st.removes)
	require.Empty(t, w.Snapshot())
}

func TestRefreshFailureKeepsList(t *testing.T) {
	st := &memStore{items: []model.Item{{ID: "1"}}}
	w := New(st)
	w.Refresh(context.Background())

	st.listErr = errors.New("offline")
	eff := w.Refresh(context.Background())
	require.Error(t, eff.Err)
	require.False(t, eff.ListChanged)
	require.Equal(t, []model.Item{{ID: "1"}}, w.Snapshot())
}

func TestListFullyReplacedAfterChange(t *testing.T) {
	st := &memStore{}
	w := New(st)
	w.ReplaceList([]model.Item{{ID: "stale"}})

	w.SubmitForm(context.Background(), model.Fields{Name: "a", Date: "d", Time: "t"})
	require.Equal(t, []model.Item{{ID: "1", Name: "a", Date: "d", Time: "t"}}, w.Snapshot())

	w.Delete(context.Background(), "1", ConfirmFunc(yes))
	require.Empty(t, w.Snapshot())
}

func TestRaiseReminderShowsItem(t *testing.T) {
	w := New(&memStore{})
	w.RaiseReminder(model.Item{ID: "9", Name: "Call", Date: "2024-05-01", Time: "10:00"})
	st := w.Popup().State()
	require.True(t, st.Visible)
	require.Equal(t, "Call", st.Pending.Name)

	eff := w.DismissSuggestion()
	require.False(t, eff.Popup.Visible)
}
