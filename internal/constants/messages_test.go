package constants

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessages(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"MsgConfigLoadFailed", MsgConfigLoadFailed},
		{"MsgConfigInvalid", MsgConfigInvalid},
		{"MsgConfigInvalidItem", MsgConfigInvalidItem},
		{"MsgLoggerFailed", MsgLoggerFailed},
		{"MsgTasksValid", MsgTasksValid},
		{"MsgTaskLine", MsgTaskLine},
		{"MsgNoRecords", MsgNoRecords},
		{"MsgRecordNotFound", MsgRecordNotFound},
		{"MsgRecordUndecodable", MsgRecordUndecodable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEmpty(t, strings.TrimSpace(tt.value))
		})
	}
}

func TestMessageFormatting(t *testing.T) {
	assert.Equal(t, "✅ 2 task(s) valid\n", fmt.Sprintf(MsgTasksValid, 2))
	assert.Equal(t, `no record under "/cron/error/-"`, fmt.Sprintf(MsgRecordNotFound, "/cron/error/-"))

	line := fmt.Sprintf(MsgTaskLine, 0, "*/5 * * * * *", "10", "FBT", "maa", "2026-10-17T12:00:05Z")
	assert.Contains(t, line, "#0")
	assert.Contains(t, line, "10 FBT -> maa")
	assert.True(t, strings.HasSuffix(line, "next: 2026-10-17T12:00:05Z\n"))
}
