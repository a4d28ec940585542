package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"
)

// Options for the client
type Options struct {
	// SessionURL serves sessions, interviews, turns and finish. Other URLs default to it
	SessionURL    string
	UploadURL     string
	StatusURL     string
	ResultURL     string
	Timeout       time.Duration
	UploadTimeout time.Duration
}

// Client communicates with the interview services
type Client struct {
	httpclient    *http.Client
	sessionURL    string
	uploadURL     string
	statusURL     string
	resultURL     string
	timeout       time.Duration
	uploadTimeout time.Duration
	backoff       func() backoff.BackOff
}

// StatusResponse is one audio status poll result
type StatusResponse struct {
	Code   int
	Status *api.AudioStatus
}

// ResultsResponse is one results poll result. Results is set on 200, Pending on 202
type ResultsResponse struct {
	Code    int
	Results *api.Results
	Pending *api.Pending
}

// NewClient creates a client
func NewClient(opts Options) (*Client, error) {
	res := &Client{}
	var err error
	if res.sessionURL, err = checkURL("session", opts.SessionURL); err != nil {
		return nil, err
	}
	if res.uploadURL, err = checkURL("upload", withDefault(opts.UploadURL, opts.SessionURL)); err != nil {
		return nil, err
	}
	if res.statusURL, err = checkURL("status", withDefault(opts.StatusURL, opts.SessionURL)); err != nil {
		return nil, err
	}
	if res.resultURL, err = checkURL("result", withDefault(opts.ResultURL, opts.SessionURL)); err != nil {
		return nil, err
	}
	res.timeout = opts.Timeout
	if res.timeout <= 0 {
		res.timeout = 20 * time.Second
	}
	res.uploadTimeout = opts.UploadTimeout
	if res.uploadTimeout <= 0 {
		res.uploadTimeout = 2 * time.Minute
	}
	res.httpclient = &http.Client{Transport: newTransport()}
	res.backoff = newSimpleBackoff
	return res, nil
}

func withDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func checkURL(name, v string) (string, error) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "/")
	if v == "" {
		return "", fmt.Errorf("no %s URL", name)
	}
	u, err := url.Parse(v)
	if err != nil {
		return "", fmt.Errorf("wrong %s URL '%s': %w", name, v, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("no http in %s URL '%s'", name, v)
	}
	return v, nil
}

type response struct {
	code int
	body []byte
}

// call does one request and reads the body. Body read failures are network errors
func (c *Client) call(ctx context.Context, method, urlStr string, body []byte, contentType string,
	timeout time.Duration) (*response, error) {
	ctx, cancelF := context.WithTimeout(ctx, timeout)
	defer cancelF()
	var br io.Reader
	if body != nil {
		br = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, br)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	goapp.Log.Debug().Str("url", urlStr).Str("method", method).Msg("call")
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("can't call '%s': %w", urlStr, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
		_ = resp.Body.Close()
	}()
	rb, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("can't read body: %w", err)
	}
	return &response{code: resp.StatusCode, body: rb}, nil
}

// invoke retries transient failures and returns the last response having an
// expected code. Other codes end with ErrServerUnavailable
func (c *Client) invoke(ctx context.Context, method, urlStr string, body []byte, contentType string,
	timeout time.Duration, okCodes ...int) (*response, error) {
	return goapp.InvokeWithBackoff(ctx, func() (*response, bool, error) {
		return c.invokeOnce(ctx, method, urlStr, body, contentType, timeout, okCodes...)
	}, c.backoff())
}

// invokeOnce does one request, the bool reports whether a retry may help
func (c *Client) invokeOnce(ctx context.Context, method, urlStr string, body []byte, contentType string,
	timeout time.Duration, okCodes ...int) (*response, bool, error) {
	resp, err := c.call(ctx, method, urlStr, body, contentType, timeout)
	if err != nil {
		return nil, ctx.Err() == nil && goapp.IsRetryableErr(err), err
	}
	for _, oc := range okCodes {
		if resp.code == oc {
			return resp, false, nil
		}
	}
	return nil, goapp.IsRetryableCode(resp.code),
		fmt.Errorf("%w: '%s %s' returned %d", api.ErrServerUnavailable, method, urlStr, resp.code)
}

func decode[T any](resp *response, res *T) error {
	if err := json.Unmarshal(resp.body, res); err != nil {
		return fmt.Errorf("%w: can't decode: %v", api.ErrMalformedResponse, err)
	}
	return nil
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, api.ErrServerUnavailable) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", api.ErrServerUnavailable, err)
}

// CreateSession creates a new session context
func (c *Client) CreateSession(ctx context.Context) (*api.Session, error) {
	resp, err := c.invoke(ctx, http.MethodPost, c.sessionURL+"/session", nil, "", c.timeout,
		http.StatusCreated, http.StatusOK)
	if err != nil {
		return nil, unavailable(err)
	}
	res := &api.Session{}
	if err := decode(resp, res); err != nil {
		return nil, err
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// StartInterview creates an interview in the session
func (c *Client) StartInterview(ctx context.Context, sessionID string, in *api.InterviewRequest) (*api.Interview, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("can't marshal: %w", err)
	}
	resp, err := c.invoke(ctx, http.MethodPost, fmt.Sprintf("%s/session/%s/interview", c.sessionURL, url.PathEscape(sessionID)),
		b, "application/json", c.timeout, http.StatusCreated, http.StatusOK)
	if err != nil {
		return nil, unavailable(err)
	}
	res := &api.Interview{}
	if err := decode(resp, res); err != nil {
		return nil, err
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// GetInterview returns interview metadata
func (c *Client) GetInterview(ctx context.Context, interviewID string) (*api.Interview, error) {
	resp, err := c.invoke(ctx, http.MethodGet, fmt.Sprintf("%s/interview/%s", c.sessionURL, url.PathEscape(interviewID)),
		nil, "", c.timeout, http.StatusOK)
	if err != nil {
		return nil, unavailable(err)
	}
	res := &api.Interview{}
	if err := decode(resp, res); err != nil {
		return nil, err
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// Catalog returns case types and durations
func (c *Client) Catalog(ctx context.Context) (*api.Catalog, error) {
	resp, err := c.invoke(ctx, http.MethodGet, c.sessionURL+"/catalog", nil, "", c.timeout, http.StatusOK)
	if err != nil {
		return nil, unavailable(err)
	}
	res := &api.Catalog{}
	if err := decode(resp, res); err != nil {
		return nil, err
	}
	if len(res.CaseTypes) == 0 {
		return nil, fmt.Errorf("%w: no case types", api.ErrMalformedResponse)
	}
	return res, nil
}

// Upload sends a recording. The response may hold an audio id, an inline
// transcript or neither
func (c *Client) Upload(ctx context.Context, fileName, contentType string, data []byte) (*api.Upload, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, api.PrmFile, escapeQuotes(fileName)))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	} else {
		h.Set("Content-Type", "application/octet-stream")
	}
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("can't add file to request: %w", err)
	}
	if _, err = part.Write(data); err != nil {
		return nil, fmt.Errorf("can't add file content to request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("can't close multipart writer: %w", err)
	}
	goapp.Log.Info().Str("url", c.uploadURL).Str("file", fileName).Int("size", len(data)).Msg("upload")
	resp, err := c.invoke(ctx, http.MethodPost, c.uploadURL+"/audio/upload", body.Bytes(),
		writer.FormDataContentType(), c.uploadTimeout, http.StatusOK, http.StatusCreated, http.StatusAccepted)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", api.ErrUploadFailed, err)
	}
	res := &api.Upload{}
	if err := decode(resp, res); err != nil {
		return nil, err
	}
	return res, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// AudioStatus makes one status request. Non 200 codes are returned without an error
func (c *Client) AudioStatus(ctx context.Context, audioID string) (*StatusResponse, error) {
	resp, err := c.call(ctx, http.MethodGet, fmt.Sprintf("%s/audio/%s/status", c.statusURL, url.PathEscape(audioID)),
		nil, "", c.timeout)
	if err != nil {
		return nil, err
	}
	res := &StatusResponse{Code: resp.code}
	if resp.code != http.StatusOK {
		return res, nil
	}
	res.Status = &api.AudioStatus{}
	if err := decode(resp, res.Status); err != nil {
		return nil, err
	}
	return res, nil
}

// CompleteTurn posts the transcript of the turn. The call is not retried, the
// server appends the answer on every request
func (c *Client) CompleteTurn(ctx context.Context, interviewID, turnID string, in *api.TurnRequest) (*api.Turn, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("can't marshal: %w", err)
	}
	resp, _, err := c.invokeOnce(ctx, http.MethodPost, fmt.Sprintf("%s/interview/%s/turn/%s/complete", c.sessionURL,
		url.PathEscape(interviewID), url.PathEscape(turnID)), b, "application/json", c.timeout, http.StatusOK)
	if err != nil {
		return nil, unavailable(err)
	}
	res := &api.Turn{}
	if err := decode(resp, res); err != nil {
		return nil, err
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// Finish ends the interview and returns the processing job id
func (c *Client) Finish(ctx context.Context, interviewID string) (*api.Finish, error) {
	resp, err := c.invoke(ctx, http.MethodPost, fmt.Sprintf("%s/interview/%s/finish", c.sessionURL, url.PathEscape(interviewID)),
		nil, "", c.timeout, http.StatusOK, http.StatusAccepted)
	if err != nil {
		return nil, unavailable(err)
	}
	res := &api.Finish{}
	if err := decode(resp, res); err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.ProcessingJobID) == "" {
		return nil, fmt.Errorf("%w: no processing_job_id", api.ErrMalformedResponse)
	}
	return res, nil
}

// Results makes one results request. Codes other than 200 and 202 are returned without an error
func (c *Client) Results(ctx context.Context, interviewID string) (*ResultsResponse, error) {
	resp, err := c.call(ctx, http.MethodGet, fmt.Sprintf("%s/interview/%s/results", c.resultURL, url.PathEscape(interviewID)),
		nil, "", c.timeout)
	if err != nil {
		return nil, err
	}
	res := &ResultsResponse{Code: resp.code}
	switch resp.code {
	case http.StatusOK:
		res.Results = &api.Results{}
		if err := decode(resp, res.Results); err != nil {
			return nil, err
		}
		if err := res.Results.Validate(); err != nil {
			return nil, err
		}
	case http.StatusAccepted:
		res.Pending = &api.Pending{}
		if err := json.Unmarshal(resp.body, res.Pending); err != nil {
			goapp.Log.Warn().Err(err).Msg("can't decode pending body")
			res.Pending = &api.Pending{}
		}
	}
	return res, nil
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 10
	res.MaxIdleConns = 10
	res.MaxIdleConnsPerHost = 10
	res.IdleConnTimeout = 90 * time.Second
	return res
}

func newSimpleBackoff() backoff.BackOff {
	res := backoff.NewExponentialBackOff()
	return backoff.WithMaxRetries(res, 3)
}
