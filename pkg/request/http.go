package request

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/grovetools/mirror/errors"
	"github.com/grovetools/mirror/pkg/models"
	"github.com/grovetools/mirror/version"
)

// unixBaseURL is the dummy host used for unix socket HTTP requests.
// The actual connection goes through the socket, not this URL.
const unixBaseURL = "http://unix"

// NewHTTPClient returns a client that dials socketPath when it is set and
// the network otherwise. A zero timeout suits long-lived streams.
func NewHTTPClient(socketPath string, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DisableKeepAlives: false,
		MaxIdleConns:      10,
		IdleConnTimeout:   90 * time.Second,
	}
	if socketPath != "" {
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		}
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// HTTPService implements Service over the server's JSON API.
type HTTPService struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPService creates a service for baseURL, or for the unix socket at
// socketPath when baseURL is empty.
func NewHTTPService(baseURL, socketPath string, timeout time.Duration) *HTTPService {
	if baseURL == "" {
		baseURL = unixBaseURL
	}
	return &HTTPService{
		httpClient: NewHTTPClient(socketPath, timeout),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the URL prefix requests are sent to.
func (s *HTTPService) BaseURL() string {
	return s.baseURL
}

// FetchModels returns the project's models.
func (s *HTTPService) FetchModels(ctx context.Context) ([]models.Model, error) {
	var out []models.Model
	if err := s.do(ctx, CallFetchModels, http.MethodGet, "/api/models", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchFiles returns the full workspace snapshot.
func (s *HTTPService) FetchFiles(ctx context.Context) (models.DirectoryPayload, error) {
	var out models.DirectoryPayload
	err := s.do(ctx, CallFetchFiles, http.MethodGet, "/api/files", nil, &out)
	return out, err
}

// FetchEnvironments returns environment metadata.
func (s *HTTPService) FetchEnvironments(ctx context.Context) (models.EnvironmentsResponse, error) {
	var out models.EnvironmentsResponse
	err := s.do(ctx, CallFetchEnvironments, http.MethodGet, "/api/environments", nil, &out)
	return out, err
}

// RunPlan asks the server to start a plan for the target environment.
func (s *HTTPService) RunPlan(ctx context.Context, req models.PlanRunRequest) (*models.PlanRunResponse, error) {
	var out models.PlanRunResponse
	if err := s.do(ctx, CallRunPlan, http.MethodPost, "/api/plan", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Close releases idle connections.
func (s *HTTPService) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *HTTPService) do(ctx context.Context, call, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.RequestFailed(call, err)
		}
		reader = bytes.NewReader(data)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, s.baseURL+path, nil)
	}
	if err != nil {
		return errors.RequestFailed(call, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.RequestCancelled(call)
		}
		return errors.RequestFailed(call, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.RequestStatus(call, resp.StatusCode)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.RequestFailed(call, err)
	}
	return nil
}

var _ Service = (*HTTPService)(nil)
