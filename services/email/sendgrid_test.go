package emailsvc

import (
	"errors"
	"io"
	"net/http"
	"net/mail"
	"testing"

	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	logsvc "github.com/trezcool/ratiba/services/logger"
)

type fakeClient struct {
	res  *rest.Response
	err  error
	sent []*sgmail.SGMailV3
}

func (c *fakeClient) Send(m *sgmail.SGMailV3) (*rest.Response, error) {
	c.sent = append(c.sent, m)
	return c.res, c.err
}

func testConfig() *core.Config {
	conf := core.NewConfig()
	conf.AppName = "Ratiba"
	conf.TestMode = true
	return conf
}

func TestSendgridService_deliver(t *testing.T) {
	core.ParseEmailTemplates(nil)
	conf := testConfig()
	logger := logsvc.NewRollbarLogger(io.Discard, conf)

	newMsg := func(to ...mail.Address) *core.EmailMessage {
		return &core.EmailMessage{
			To:           to,
			Subject:      "handover notification",
			TemplateName: "notification",
			TemplateData: struct {
				Name        string
				Description string
				RefID       string
			}{"Ada", "You are assigned", "h1"},
		}
	}
	ada := mail.Address{Name: "Ada", Address: "ada@test.cd"}

	tests := []struct {
		name     string
		msg      *core.EmailMessage
		res      *rest.Response
		err      error
		want     bool
		wantSent int
	}{
		{name: "sent", msg: newMsg(ada), res: &rest.Response{StatusCode: http.StatusAccepted}, want: true, wantSent: 1},
		{name: "no recipients", msg: newMsg(), res: &rest.Response{StatusCode: http.StatusAccepted}},
		{name: "rejected", msg: newMsg(ada), res: &rest.Response{StatusCode: http.StatusUnauthorized, Body: "bad key"}, wantSent: 1},
		{name: "transport error", msg: newMsg(ada), err: errors.New("dial tcp: timeout"), wantSent: 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{res: tt.res, err: tt.err}
			svc := newSendgridService(conf, client, logger)

			assert.Equal(t, tt.want, svc.deliver(tt.msg))
			require.Len(t, client.sent, tt.wantSent)
			if tt.wantSent == 0 {
				return
			}
			m := client.sent[0]
			assert.Equal(t, []string{"notification"}, m.Categories)
			require.Len(t, m.Personalizations, 1)
			assert.Equal(t, "[Ratiba] handover notification", m.Personalizations[0].Subject)
			assert.Equal(t, "ada@test.cd", m.Personalizations[0].To[0].Address)
			assert.Contains(t, m.Content[0].Value, "You are assigned")
		})
	}
}

func TestNewService(t *testing.T) {
	conf := testConfig()
	logger := logsvc.NewRollbarLogger(io.Discard, conf)

	assert.IsType(t, &consoleService{}, NewService(conf, logger))

	conf.TestMode = false
	conf.Debug = false
	conf.SendgridApiKey = "SG.key"
	assert.IsType(t, &sendgridService{}, NewService(conf, logger))
}
