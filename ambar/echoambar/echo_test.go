package echoambar_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/ambar"
	"github.com/aneshas/streamstore/ambar/echoambar"
)

var testPayload = `{ "payload": {}}`

type projector struct {
	wantErr error
	data    []byte
	ctx     context.Context
}

// Project projects ambar event to provided projection
func (p *projector) Project(ctx context.Context, _ streamstore.Projection, data []byte) error {
	p.data = data
	p.ctx = ctx

	return p.wantErr
}

func TestShould_Respond_With_Policy(t *testing.T) {
	cases := []struct {
		name    string
		wantErr error
		resp    string
	}{
		{"success", nil, ambar.SuccessResp},
		{"no retry", fmt.Errorf("%w: logged", ambar.ErrNoRetry), ambar.SuccessResp},
		{"keep going", ambar.ErrKeepItGoing, ambar.KeepGoingResp},
		{"retry", ambar.ErrRetry, ambar.RetryResp},
		{"retry as fallback", fmt.Errorf("some arbitrary error"), ambar.RetryResp},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := projector{wantErr: tc.wantErr}

			rec := project(t, &p, testPayload)

			assert.Equal(t, testPayload, string(p.data))
			assert.NotNil(t, p.ctx)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.resp, rec.Body.String())
		})
	}
}

func project(t *testing.T, p *projector, payload string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := echoambar.Wrap(p)(nil)

	require.NoError(t, h(c))

	return rec
}
