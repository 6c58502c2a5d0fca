package daka

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sisudaka/lib/questionnaire"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const detailBody = `{"rows": [
	{"STATE": "进行中"},
	{
		"INDEX": 1, "ITEMID": "Q1", "TITLE": "今日体温", "REQUIRE": true, "TYPE": "radio",
		"OPTIONS": [
			{"OPTION": "36.5", "SUBID": "C1", "CHECKED": false, "INDEX": 1},
			{"OPTION": "37.0", "SUBID": "C2", "CHECKED": false, "INDEX": 2}
		]
	},
	{"INDEX": 2, "ITEMID": "Q2", "TITLE": "所在位置", "REQUIRE": true, "TYPE": "textFill"}
]}`

type fakeRemote struct {
	mu       sync.Mutex
	answered bool
	listBody string
	forms    map[string][]map[string]string
	headers  http.Header
}

func (f *fakeRemote) handler(t testing.TB) http.Handler {
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		require.NoError(t, r.ParseForm())
		form := map[string]string{}
		for key := range r.PostForm {
			form[key] = r.PostForm.Get(key)
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.forms == nil {
			f.forms = map[string][]map[string]string{}
		}
		f.forms[r.URL.Path] = append(f.forms[r.URL.Path], form)
		f.headers = r.Header.Clone()
	}

	mux.HandleFunc("POST "+DefaultListPath, func(w http.ResponseWriter, r *http.Request) {
		record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.listBody != "" {
			w.Write([]byte(f.listBody))
			return
		}
		answered := "false"
		if f.answered {
			answered = "true"
		}
		w.Write([]byte(`{"rows": [{"ID": "QN1", "TITLE": "每日健康打卡", "HASANSWER": ` + answered + `}]}`))
	})
	mux.HandleFunc("POST "+DefaultDetailPath, func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Write([]byte(detailBody))
	})
	mux.HandleFunc("POST "+DefaultSubmitPath, func(w http.ResponseWriter, r *http.Request) {
		record(r)
		f.mu.Lock()
		f.answered = true
		f.mu.Unlock()
		w.Write([]byte(`{"code": 0}`))
	})
	return mux
}

func newTestClient(t testing.TB, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{BaseUrl: server.URL})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestClientRoundTrip(t *testing.T) {
	remote := &fakeRemote{}
	client := newTestClient(t, remote.handler(t))
	ctx := context.Background()

	listing, err := client.ListQuestionnaires(ctx, "0123456789")
	require.NoError(t, err)
	require.Equal(t, Listing{ID: "QN1", Title: "每日健康打卡", Answered: false}, listing)
	require.Equal(t, map[string]string{
		"pageNum":    "1",
		"pageSize":   "10",
		"nodataFlag": "false",
		"userId":     "0123456789",
	}, remote.forms[DefaultListPath][0])
	require.Equal(t, "XMLHttpRequest", remote.headers.Get("X-Requested-With"))
	require.Contains(t, remote.headers.Get("User-Agent"), "wxwork")
	require.NotEmpty(t, remote.headers.Get("Origin"))

	q, err := client.GetQuestionnaire(ctx, listing.ID, "0123456789")
	require.NoError(t, err)
	require.Equal(t, 2, q.Len())
	require.Equal(t, "QN1", q.ID())

	respondent := questionnaire.NewRespondent([]questionnaire.Rule{
		{Fragment: "体温", Value: questionnaire.Literal("37.0")},
		{Fragment: "位置", Value: questionnaire.Literal("上海")},
	})
	require.NoError(t, respondent.Answer(ctx, q))
	payload, err := questionnaire.BuildPayload(q)
	require.NoError(t, err)

	require.NoError(t, client.Submit(ctx, q, payload))
	submitted := remote.forms[DefaultSubmitPath][0]
	require.Equal(t, "QN1", submitted["questionnaireId"])
	require.Equal(t, "0123456789", submitted["userId"])
	answerData := gjson.Parse(submitted["answerData"])
	require.Equal(t, "C2", answerData.Get("answerData.0.answerArr.0").String())
	require.Equal(t, "上海", answerData.Get("answerData.1.answerArr.0").String())

	listing, err = client.ListQuestionnaires(ctx, "0123456789")
	require.NoError(t, err)
	require.True(t, listing.Answered)
}

func TestClientEmptyListing(t *testing.T) {
	remote := &fakeRemote{listBody: `{"rows": []}`}
	client := newTestClient(t, remote.handler(t))

	_, err := client.ListQuestionnaires(context.Background(), "0123456789")
	require.ErrorIs(t, err, ErrNoQuestionnaire)
}

func TestClientTransportErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		err    error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "oops", err: errBadStatus},
		{name: "not found", status: http.StatusNotFound, body: "", err: errBadStatus},
		{name: "html body", status: http.StatusOK, body: "<html>login</html>", err: errMalformedJson},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
				w.Write([]byte(test.body))
			}))

			_, err := client.ListQuestionnaires(context.Background(), "0123456789")
			var transportErr *TransportError
			require.ErrorAs(t, err, &transportErr)
			require.True(t, errors.Is(err, test.err))
			require.Equal(t, test.status, transportErr.Status)
			require.Equal(t, test.body, transportErr.Body)
			require.Equal(t, "list questionnaires", transportErr.Op)
		})
	}
}

func TestClientNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client, err := NewClient(ClientOptions{BaseUrl: server.URL})
	require.NoError(t, err)

	_, err = client.GetQuestionnaire(context.Background(), "QN1", "0123456789")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Zero(t, transportErr.Status)
}

func TestClientSchemaErrorPassesThrough(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rows": [{"STATE": "已结束"}]}`))
	}))

	_, err := client.GetQuestionnaire(context.Background(), "QN1", "0123456789")
	require.ErrorIs(t, err, questionnaire.ErrSchemaValidation)
	var notInProgress *questionnaire.NotInProgressError
	require.ErrorAs(t, err, &notInProgress)
}

func TestTruncate(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	require.Len(t, truncate(long), 515)
	require.Equal(t, "short", truncate([]byte("short")))
}
