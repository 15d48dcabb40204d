package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
)

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.0 KiB", humanBytes(1024))
	assert.Equal(t, "1.5 MiB", humanBytes(1536*1024))
	assert.Equal(t, "2.0 TiB", humanBytes(2<<40))
}

func TestPending(t *testing.T) {
	records := []models.TransferRecord{
		{ID: "1", State: models.TransferActive},
		{ID: "2", State: models.TransferCompleted},
		{ID: "3", State: models.TransferPaused},
		{ID: "4", State: models.TransferFailed},
	}
	assert.Equal(t, 2, pending(records))
	assert.Zero(t, pending(nil))
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"server", "mcp", "ls", "mkdir", "rm", "mv", "rename", "get", "put", "mediainfo", "transfers", "df", "whoami"}
	for _, name := range want {
		c, _, err := rootCmd.Find([]string{name})
		if assert.NoError(t, err, name) {
			assert.Equal(t, name, c.Name())
		}
	}

	for _, sub := range []string{"list", "watch", "cancel", "pause", "resume"} {
		c, _, err := rootCmd.Find([]string{"transfers", sub})
		if assert.NoError(t, err, sub) {
			assert.Equal(t, sub, c.Name())
		}
	}
}
