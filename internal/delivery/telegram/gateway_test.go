package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devhelper/internal/domain"
)

const testToken = "123:abc"

type apiCall struct {
	Method string
	Params map[string]any
}

type fakeAPI struct {
	mu       sync.Mutex
	calls    []apiCall
	failWith map[string]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	params := map[string]any{}
	body, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(body, &params)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Params: params})
	desc, fail := f.failWith[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": false, "error_code": 400, "description": desc,
		})
		return
	}

	var result any
	switch method {
	case "getChat":
		result = map[string]any{"id": 42, "type": "private"}
	default:
		result = map[string]any{
			"message_id": 7,
			"date":       0,
			"chat":       map[string]any{"id": 42, "type": "private"},
			"text":       "ok",
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func (f *fakeAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

func newTestGateway(t *testing.T, api *fakeAPI) *Gateway {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	gw, err := New(Config{Token: testToken, APIURL: srv.URL, RatePerSec: 100}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return gw
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestGateway_Resolve(t *testing.T) {
	api := &fakeAPI{}
	gw := newTestGateway(t, api)

	require.NoError(t, gw.Resolve(context.Background(), domain.Destination{ChannelID: "42"}))
	assert.Equal(t, []string{"getChat"}, api.methods())
}

func TestGateway_ResolveInvalidChatID(t *testing.T) {
	api := &fakeAPI{}
	gw := newTestGateway(t, api)

	err := gw.Resolve(context.Background(), domain.Destination{ChannelID: "not-a-number"})
	assert.ErrorIs(t, err, domain.ErrDestinationUnreachable)
	assert.Empty(t, api.methods())
}

func TestGateway_ResolveChatNotFound(t *testing.T) {
	api := &fakeAPI{failWith: map[string]string{"getChat": "Bad Request: chat not found"}}
	gw := newTestGateway(t, api)

	err := gw.Resolve(context.Background(), domain.Destination{ChannelID: "42"})
	assert.ErrorIs(t, err, domain.ErrDestinationUnreachable)
}

func TestGateway_DeliverEditsThenSends(t *testing.T) {
	api := &fakeAPI{}
	gw := newTestGateway(t, api)

	err := gw.Deliver(context.Background(),
		domain.Destination{ChannelID: "42", MessageID: "7"},
		domain.Payload{Text: "time for a break", Edit: "focus done"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"editMessageText", "sendMessage"}, api.methods())
	assert.Equal(t, "time for a break", api.calls[1].Params["text"])
}

func TestGateway_DeliverTextOnly(t *testing.T) {
	api := &fakeAPI{}
	gw := newTestGateway(t, api)

	err := gw.Deliver(context.Background(),
		domain.Destination{ChannelID: "42"},
		domain.Payload{Text: "digest", Edit: "ignored without message id"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"sendMessage"}, api.methods())
}

func TestGateway_DeliverEditFailureStillSends(t *testing.T) {
	api := &fakeAPI{failWith: map[string]string{"editMessageText": "Bad Request: message to edit not found"}}
	gw := newTestGateway(t, api)

	err := gw.Deliver(context.Background(),
		domain.Destination{ChannelID: "42", MessageID: "7"},
		domain.Payload{Text: "hello", Edit: "summary"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"editMessageText", "sendMessage"}, api.methods())
}

func TestGateway_DeliverEditOnly(t *testing.T) {
	api := &fakeAPI{}
	gw := newTestGateway(t, api)

	err := gw.Deliver(context.Background(),
		domain.Destination{ChannelID: "42", MessageID: "7"},
		domain.Payload{Edit: "on a break"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"editMessageText"}, api.methods())
}

func TestGateway_DeliverSendFailure(t *testing.T) {
	api := &fakeAPI{failWith: map[string]string{"sendMessage": "Bad Request: chat not found"}}
	gw := newTestGateway(t, api)

	err := gw.Deliver(context.Background(), domain.Destination{ChannelID: "42"}, domain.Payload{Text: "x"})
	assert.ErrorIs(t, err, domain.ErrDestinationUnreachable)
}
