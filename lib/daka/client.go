// Package daka talks to the check-in questionnaire endpoints.
package daka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sisudaka/lib/questionnaire"
	"sisudaka/lib/restyutil"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("sisudaka/lib/daka")

const (
	DefaultBaseUrl    = "https://daka.shisu.edu.cn"
	DefaultListPath   = "/questionnaireSurvey/queryQuestionnairePageList"
	DefaultDetailPath = "/questionnaireSurvey/queryQuestionnaireDetail"
	DefaultSubmitPath = "/questionnaireSurvey/addQuestionnaireRecord"

	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 20 * time.Second
)

// the endpoints only answer to what looks like the WeCom embedded browser
const userAgent = "Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/53.0.2785.116 Safari/537.36 wxwork/3.1.1 (MicroMessenger/6.2) WindowsWechat"

var ErrNoQuestionnaire = errors.New("no questionnaire listed for this user")

type ClientOptions struct {
	BaseUrl    string
	ListPath   string
	DetailPath string
	SubmitPath string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// RequestsPerSecond limits the request rate, 0 disables the limit.
	RequestsPerSecond float64

	// InstrumentOutput receives full request/response dumps, it can be nil.
	InstrumentOutput restyutil.InstrumentOutput
}

func (o *ClientOptions) setDefaults() {
	if o.BaseUrl == "" {
		o.BaseUrl = DefaultBaseUrl
	}
	if o.ListPath == "" {
		o.ListPath = DefaultListPath
	}
	if o.DetailPath == "" {
		o.DetailPath = DefaultDetailPath
	}
	if o.SubmitPath == "" {
		o.SubmitPath = DefaultSubmitPath
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
}

// Client is a single session against the remote, it keeps cookies between
// calls and is not meant to be used concurrently.
type Client struct {
	http *resty.Client
	opts ClientOptions
}

func NewClient(opts ClientOptions) (*Client, error) {
	opts.setDefaults()

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
	})
	client.SetTimeout(opts.ConnectTimeout + opts.ReadTimeout)
	client.SetHeaders(map[string]string{
		"Origin":           fmt.Sprintf("%s://%s", baseUrl.Scheme, baseUrl.Host),
		"X-Requested-With": "XMLHttpRequest",
		"User-Agent":       userAgent,
		"Accept-Language":  "zh-CN",
	})

	if opts.RequestsPerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}
	restyutil.InstrumentClient(client, tracer, opts.InstrumentOutput)

	return &Client{http: client, opts: opts}, nil
}

func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}

// TransportError is any failure to get a well formed response out of the
// remote: network errors, timeouts, non 2xx statuses and bodies that are not
// JSON.
type TransportError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Err.Error(), e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

var (
	errBadStatus     = errors.New("unexpected response status")
	errMalformedJson = errors.New("response is not valid json")
)

func truncate(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

func (c *Client) post(ctx context.Context, op, path string, form map[string]string) (gjson.Result, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(path)
	if err != nil {
		return gjson.Result{}, &TransportError{Op: op, Err: err}
	}
	if !res.IsSuccess() {
		return gjson.Result{}, &TransportError{
			Op:     op,
			Status: res.StatusCode(),
			Body:   truncate(res.Body()),
			Err:    errBadStatus,
		}
	}
	if !gjson.ValidBytes(res.Body()) {
		return gjson.Result{}, &TransportError{
			Op:     op,
			Status: res.StatusCode(),
			Body:   truncate(res.Body()),
			Err:    errMalformedJson,
		}
	}
	return gjson.ParseBytes(res.Body()), nil
}

// Listing is the most recent questionnaire of a user.
type Listing struct {
	ID       string
	Title    string
	Answered bool
}

func (c *Client) ListQuestionnaires(ctx context.Context, userId string) (Listing, error) {
	ctx, span := tracer.Start(ctx, "client:ListQuestionnaires")
	defer span.End()

	body, err := c.post(ctx, "list questionnaires", c.opts.ListPath, map[string]string{
		"pageNum":    "1",
		"pageSize":   "10",
		"nodataFlag": "false",
		"userId":     userId,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list questionnaires")
		return Listing{}, err
	}

	row := body.Get("rows.0")
	if !row.Exists() {
		span.SetStatus(codes.Error, ErrNoQuestionnaire.Error())
		return Listing{}, ErrNoQuestionnaire
	}
	listing := Listing{
		ID:       row.Get("ID").String(),
		Title:    row.Get("TITLE").String(),
		Answered: row.Get("HASANSWER").Bool(),
	}
	span.SetAttributes(
		attribute.String("questionnaire.id", listing.ID),
		attribute.Bool("questionnaire.answered", listing.Answered),
	)
	return listing, nil
}

func (c *Client) GetQuestionnaire(ctx context.Context, questionnaireId, userId string) (*questionnaire.Questionnaire, error) {
	ctx, span := tracer.Start(ctx, "client:GetQuestionnaire")
	defer span.End()

	body, err := c.post(ctx, "get questionnaire detail", c.opts.DetailPath, map[string]string{
		"questionnaireId": questionnaireId,
		"userId":          userId,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch questionnaire detail")
		return nil, err
	}

	q, err := questionnaire.New(body.Get("rows").Array(), questionnaireId, userId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse questionnaire")
		return nil, err
	}
	span.SetAttributes(attribute.Int("questionnaire.questions", q.Len()))
	return q, nil
}

func (c *Client) Submit(ctx context.Context, q *questionnaire.Questionnaire, payload questionnaire.Payload) error {
	ctx, span := tracer.Start(ctx, "client:Submit")
	defer span.End()

	answerData, err := payload.Encode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode payload")
		return err
	}

	_, err = c.post(ctx, "submit answers", c.opts.SubmitPath, map[string]string{
		"questionnaireId": q.ID(),
		"userId":          q.StudentID(),
		"answerData":      answerData,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit answers")
		return err
	}
	return nil
}
