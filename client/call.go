package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/core/auth"
	"github.com/MagetoJ/EduKE-sub001/core/authz"
)

const maxBodySize = 1 << 20

type CallOptions struct {
	Method     string      // defaults to GET
	Body       interface{} // encoded as JSON when not nil
	Capability authz.Capability
}

// Response is the outcome of every call the server answered, successful or not.
type Response struct {
	StatusCode int
	Success    bool
	Message    string
	Error      string
	Code       string
	Fields     map[string]string
	Data       json.RawMessage
}

// Decode unmarshals the response body into v.
func (r Response) Decode(v interface{}) error {
	return json.Unmarshal(r.Data, v)
}

// Err returns the failure carried by an unsuccessful response, or nil.
func (r Response) Err() error {
	if r.Success {
		return nil
	}
	if len(r.Fields) > 0 {
		flds := make([]core.FieldError, 0, len(r.Fields))
		for f, msg := range r.Fields {
			flds = append(flds, core.FieldError{Field: f, Error: msg})
		}
		return core.NewValidationError(errors.New(r.Error), flds...)
	}
	if ae := core.AuthErrorFromCode(r.Code); ae != nil {
		if r.Error != "" && r.Error != ae.Message {
			return &core.AuthError{Code: ae.Code, Message: r.Error}
		}
		return ae
	}
	msg := r.Error
	if msg == "" {
		msg = http.StatusText(r.StatusCode)
	}
	return errors.Errorf("%d: %s", r.StatusCode, msg)
}

// Call sends a request to path with the current session's credentials. A call the current
// principal is not allowed to make is never sent. A 401, a disabled account or a suspended
// school ends the session. Transport failures and timeouts are reported as
// core.ErrNetworkFailure and leave the session as is.
func (s *Session) Call(ctx context.Context, path string, opts CallOptions) (Response, error) {
	if opts.Capability != "" && !s.Can(opts.Capability) {
		return Response{}, authz.Denied()
	}
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	var body []byte
	if opts.Body != nil {
		var err error
		if body, err = json.Marshal(opts.Body); err != nil {
			return Response{}, errors.Wrap(err, "encoding request body")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	saved, gen := s.current()
	httpClient := s.anon
	if saved != nil {
		httpClient = s.authed
	}

	resp, err := s.do(ctx, httpClient, opts.Method, path, body)
	if err != nil && saved != nil {
		if ae, ok := core.AsAuthError(err); ok && ae.Code != core.CodeNetworkFailure {
			// the session could not be refreshed and has ended; the server decides
			// what an anonymous caller gets
			saved = nil
			resp, err = s.do(ctx, s.anon, opts.Method, path, body)
		}
	}
	if err != nil {
		return Response{}, err
	}
	if saved != nil && endsSession(resp) {
		s.teardownIf(gen)
	}
	return resp, nil
}

// endsSession reports whether resp refuses the credentials themselves. A disabled account
// or a suspended school ends the session; a capability denial does not.
func endsSession(resp Response) bool {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return true
	case resp.StatusCode == http.StatusForbidden:
		code := core.ErrorCode(resp.Code)
		return code == core.CodeAccountDisabled || code == core.CodeTenantInactive
	}
	return false
}

func newRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (s *Session) do(ctx context.Context, httpClient *http.Client, method, path string, body []byte) (Response, error) {
	req, err := newRequest(ctx, method, s.baseURL+path, body)
	if err != nil {
		return Response{}, err
	}
	res, err := httpClient.Do(req)
	if err != nil {
		if ae, ok := core.AsAuthError(err); ok {
			return Response{}, ae
		}
		s.logError("calling "+path, err)
		return Response{}, core.ErrNetworkFailure
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		s.logError("reading "+path, err)
		return Response{}, core.ErrNetworkFailure
	}

	resp := Response{
		StatusCode: res.StatusCode,
		Success:    res.StatusCode >= 200 && res.StatusCode < 300,
		Data:       data,
	}
	var envelope struct {
		Message string            `json:"message"`
		Error   string            `json:"error"`
		Code    string            `json:"code"`
		Fields  map[string]string `json:"fields"`
	}
	if json.Unmarshal(data, &envelope) == nil {
		resp.Message = envelope.Message
		resp.Error = envelope.Error
		resp.Code = envelope.Code
		resp.Fields = envelope.Fields
	}
	return resp, nil
}

// post calls an endpoint that needs no credentials and decodes a successful body into out.
func (s *Session) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "encoding request body")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.do(ctx, s.anon, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if out != nil {
		return errors.Wrap(resp.Decode(out), "decoding response")
	}
	return nil
}

// Wire bodies.

type (
	loginBody struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Remember bool   `json:"remember"`
	}
	refreshBody struct {
		RefreshToken string `json:"refreshToken"`
	}
	changePasswordBody struct {
		NewPassword string `json:"newPassword"`
	}
	emailBody struct {
		Email string `json:"email"`
	}
	resetBody struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	tokenBody struct {
		Token string `json:"token"`
	}

	grantBody struct {
		Outcome          auth.Outcome      `json:"outcome"`
		AccessToken      string            `json:"accessToken"`
		RefreshToken     string            `json:"refreshToken"`
		AccessExpiresAt  time.Time         `json:"accessExpiresAt"`
		SessionExpiresAt time.Time         `json:"sessionExpiresAt"`
		Persistent       bool              `json:"persistent"`
		User             account.Principal `json:"user"`
	}
	meBody struct {
		User         account.Principal  `json:"user"`
		Capabilities []authz.Capability `json:"capabilities"`
	}
)

func (g grantBody) saved() SavedSession {
	return SavedSession{
		AccessToken:      g.AccessToken,
		RefreshToken:     g.RefreshToken,
		AccessExpiresAt:  g.AccessExpiresAt,
		SessionExpiresAt: g.SessionExpiresAt,
		Persistent:       g.Persistent,
		Principal:        g.User,
	}
}
