package core_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolehub/backend/core"
	appfs "github.com/ecolehub/backend/fs"
	"github.com/ecolehub/backend/testutil"
)

func TestEmailMessage_Render(t *testing.T) {
	conf := core.NewTestConfig()
	core.ParseEmailTemplates(appfs.FS, conf, testutil.NewLogger(conf))

	tests := []struct {
		name     string
		msg      core.EmailMessage
		wantText []string
		wantHTML bool
		wantErr  bool
	}{
		{
			name: "template",
			msg: core.EmailMessage{TemplateName: "grades_rejected", TemplateData: map[string]interface{}{
				"Name": "Mme Kabila", "Count": 3, "Reason": "notes incomplètes",
			}},
			wantText: []string{"Hello Mme Kabila,", "3 grade(s)", "Reason: notes incomplètes", conf.FrontendBaseURL},
			wantHTML: true,
		},
		{
			name:     "plain body",
			msg:      core.EmailMessage{BodyStr: "Bonjour"},
			wantText: []string{"Bonjour"},
		},
		{
			name: "unknown template",
			msg:  core.EmailMessage{TemplateName: "lol"},
		},
		{
			name:    "missing key",
			msg:     core.EmailMessage{TemplateName: "grades_rejected", TemplateData: map[string]interface{}{"Name": "X"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Render()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.wantText {
				assert.Contains(t, tt.msg.TextContent, want)
			}
			assert.Equal(t, len(tt.wantText) > 0, tt.msg.HasContent())
			assert.Equal(t, tt.wantHTML, tt.msg.HTMLContent != "")
		})
	}
}

func TestEmailMessage_Attach(t *testing.T) {
	var msg core.EmailMessage
	assert.False(t, msg.HasAttachments())

	require.NoError(t, msg.Attach(strings.NewReader("matricule,nom\n"), "eleves.csv", "text/csv"))
	require.NoError(t, msg.Attach(strings.NewReader("<html><body>ok</body></html>"), "recu.html"))
	require.Len(t, msg.Attachments, 2)

	assert.Equal(t, "text/csv", msg.Attachments[0].ContentType)
	assert.Equal(t, "bWF0cmljdWxlLG5vbQo=", msg.Attachments[0].Base64())
	assert.Equal(t, "text/html; charset=utf-8", msg.Attachments[1].ContentType)
}
