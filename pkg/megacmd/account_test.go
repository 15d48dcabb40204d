package megacmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
)

func TestParseDiskFree(t *testing.T) {
	text := `Cloud drive:          250770805753 in   17210 file(s) and    1352 folder(s)
Inbox:                           0 in       0 file(s) and       1 folder(s)
Rubbish bin:                  1368 in       4 file(s) and       2 folder(s)
---------------------------------------------------------------------------
USED STORAGE:         250770069025                  11.40% of 2199023255552
---------------------------------------------------------------------------
Total size taken up by file versions:    306416706
`
	out, err := ParseDiskFree(text)
	require.NoError(t, err)
	require.Len(t, out.Locations, 3)
	assert.Equal(t, models.StorageLocation{Name: "Cloud drive", Bytes: 250770805753, Files: 17210, Folders: 1352}, out.Locations[0])
	assert.Equal(t, "Rubbish bin", out.Locations[2].Name)
	assert.Equal(t, int64(250770069025), out.UsedBytes)
	assert.InDelta(t, 11.40, out.UsedPercent, 0.001)
	assert.Equal(t, int64(2199023255552), out.TotalBytes)
	assert.Equal(t, int64(306416706), out.VersionBytes)

	_, err = ParseDiskFree("Not logged in.")
	assert.Equal(t, models.ErrParse, models.KindOf(err))
}

func TestParseWhoAmI(t *testing.T) {
	email, ok := ParseWhoAmI("Account e-mail: user@example.com\n")
	assert.True(t, ok)
	assert.Equal(t, "user@example.com", email)

	_, ok = ParseWhoAmI("Not logged in.")
	assert.False(t, ok)
}

func TestParseMediaInfo(t *testing.T) {
	text := "FILE                WIDTH  HEIGHT  FPS  PLAYTIME\nmy clip.mp4          1920    1080   30  00:10:00\n"
	info, err := ParseMediaInfo("/v/my clip.mp4", text)
	require.NoError(t, err)
	assert.Equal(t, models.MediaInfo{Path: "/v/my clip.mp4", Width: 1920, Height: 1080, FPS: 30, Playtime: "00:10:00"}, info)

	_, err = ParseMediaInfo("/x", "")
	assert.Equal(t, models.ErrParse, models.KindOf(err))
}
