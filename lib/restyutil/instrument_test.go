package restyutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mu       sync.Mutex
	messages map[string]string
}

func (o *memoryOutput) Write(id string, contents string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.messages == nil {
		o.messages = map[string]string{}
	}
	o.messages[id] = contents
}

func TestInstrumentClientWritesMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rows": []}`))
	}))
	defer server.Close()

	out := &memoryOutput{}
	client := resty.New().SetBaseURL(server.URL)
	InstrumentClient(client, nil, out)

	_, err := client.R().
		SetFormData(map[string]string{"userId": "0123456789"}).
		Post("/list")
	require.NoError(t, err)
	_, err = client.R().Get("/detail")
	require.NoError(t, err)

	require.Len(t, out.messages, 2)
	first := out.messages["1"]
	require.True(t, strings.HasPrefix(first, "---- REQUEST ----\n\nPOST "))
	require.Contains(t, first, "userId=0123456789")
	require.Contains(t, first, `{"rows": []}`)
	require.Contains(t, out.messages["2"], "<NO BODY AVAILABLE>")
}

func TestFormatHeaders(t *testing.T) {
	require.Equal(t, "", formatHeaders(http.Header{}))
	require.Equal(
		t,
		"Accept-Language: zh-CN\nX-Requested-With: XMLHttpRequest",
		formatHeaders(http.Header{
			"X-Requested-With": {"XMLHttpRequest"},
			"Accept-Language":  {"zh-CN"},
		}),
	)
}
