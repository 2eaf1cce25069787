package popup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"schedwidget/internal/model"
)

type fakeAdder struct {
	calls []model.Fields
	err   error
}

func (f *fakeAdder) Add(_ context.Context, fl model.Fields) error {
	f.calls = append(f.calls, fl)
	return f.err
}

var dentist = model.Suggestion{Name: "Dentist", Date: "2024-05-01", Time: "09:30", Description: "checkup"}

func TestConfirmWithoutPendingIsNoop(t *testing.T) {
	c := New()
	a := &fakeAdder{}

	called, err := c.Confirm(context.Background(), a)
	require.NoError(t, err)
	require.False(t, called)
	require.Empty(t, a.calls)
	require.Equal(t, State{}, c.State())
}

func TestConfirmSuccessHides(t *testing.T) {
	c := New()
	c.Show(dentist)
	a := &fakeAdder{}

	called, err := c.Confirm(context.Background(), a)
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, []model.Fields{dentist}, a.calls)
	require.False(t, c.State().Visible)
	require.Nil(t, c.State().Pending)
}

func TestConfirmFailureRetainsSuggestion(t *testing.T) {
	c := New()
	c.Show(dentist)
	a := &fakeAdder{err: errors.New("503")}

	called, err := c.Confirm(context.Background(), a)
	require.Error(t, err)
	require.True(t, called)

	st := c.State()
	require.True(t, st.Visible)
	require.Equal(t, dentist, *st.Pending)

	// Retry succeeds.
	a.err = nil
	_, err = c.Confirm(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, a.calls, 2)
	require.False(t, c.State().Visible)
}

func TestShowReplacesPending(t *testing.T) {
	c := New()
	c.Show(dentist)
	gym := model.Suggestion{Name: "Gym", Date: "2024-05-02", Time: "07:00"}
	c.Show(gym)

	st := c.State()
	require.True(t, st.Visible)
	require.Equal(t, gym, *st.Pending)
}

func TestDismissAlwaysClears(t *testing.T) {
	c := New()
	c.Dismiss()
	require.Equal(t, State{}, c.State())

	c.Show(dentist)
	c.Dismiss()
	require.Equal(t, State{}, c.State())
}

func TestStateIsACopy(t *testing.T) {
	c := New()
	c.Show(dentist)
	st := c.State()
	st.Pending.Name = "mutated"
	require.Equal(t, "Dentist", c.State().Pending.Name)
}
