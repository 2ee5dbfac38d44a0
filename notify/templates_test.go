package notify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_DefaultTemplates_Valid(t *testing.T) {
	require.NoError(t, DefaultTemplates().Validate())
}

func Test_Render(t *testing.T) {
	ts := DefaultTemplates()

	title, body, err := ts.Render(KindGroupExpired, map[string]string{"groupName": "friday"})
	require.NoError(t, err)
	require.Equal(t, "Group expired", title)
	require.Equal(t, "friday has ended. See you next time!", body)

	_, _, err = ts.Render("nope", nil)
	require.Error(t, err)
}

func Test_Render_MissingDataLeavesPlaceholder(t *testing.T) {
	ts := DefaultTemplates()

	_, body, err := ts.Render(KindGroupInvite, nil)
	require.NoError(t, err)
	require.Equal(t, "You have been invited to {groupName}.", body)
}

func Test_LoadTemplates_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yml")
	err := os.WriteFile(path, []byte(`
groupInvite:
  title: "Join us"
  body: "Come hang out in {groupName}!"
`), 0o644)
	require.NoError(t, err)

	ts, err := LoadTemplates(path)
	require.NoError(t, err)

	title, body, err := ts.Render(KindGroupInvite, map[string]string{"groupName": "friday"})
	require.NoError(t, err)
	require.Equal(t, "Join us", title)
	require.Equal(t, "Come hang out in friday!", body)

	// Untouched kinds keep the defaults.
	title, _, err = ts.Render(KindPingReceived, nil)
	require.NoError(t, err)
	require.Equal(t, "New ping", title)
}

func Test_LoadTemplates_RejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yml")
	err := os.WriteFile(path, []byte(`
groupInvite:
  title: "Join us"
`), 0o644)
	require.NoError(t, err)

	_, err = LoadTemplates(path)
	require.Error(t, err)
}
