package bill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RemoteStore implements Store against a remote bills API
type RemoteStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRemoteStore creates a RemoteStore. token is sent as a bearer token when set.
func NewRemoteStore(baseURL, token string) (*RemoteStore, error) {
	return NewRemoteStoreWithClient(baseURL, token, &http.Client{Timeout: 30 * time.Second})
}

// NewRemoteStoreWithClient creates a RemoteStore with a custom HTTP client
func NewRemoteStoreWithClient(baseURL, token string, client *http.Client) (*RemoteStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote store url %q", baseURL)
	}
	return &RemoteStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  client,
	}, nil
}

// List returns the bills of email as ordered by the remote service
func (r *RemoteStore) List(ctx context.Context, email string) ([]*Bill, error) {
	endpoint := r.baseURL + "/bills?" + url.Values{"email": {email}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	bills := make([]*Bill, 0)
	if err := r.do(req, &bills); err != nil {
		return nil, err
	}
	return bills, nil
}

// Create posts a bill to the remote service
func (r *RemoteStore) Create(ctx context.Context, bill *Bill) (*Bill, error) {
	body, err := json.Marshal(bill)
	if err != nil {
		return nil, fmt.Errorf("marshaling bill: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/bills", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var created Bill
	if err := r.do(req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateAttachment uploads a receipt as multipart form data
func (r *RemoteStore) CreateAttachment(ctx context.Context, a AttachmentRequest) (*Attachment, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("email", a.Email); err != nil {
		return nil, fmt.Errorf("writing email field: %w", err)
	}
	part, err := writer.CreateFormFile("file", a.FileName)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(a.Data); err != nil {
		return nil, fmt.Errorf("writing form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/bills/attachments", body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var attachment Attachment
	if err := r.do(req, &attachment); err != nil {
		return nil, err
	}
	if attachment.FileName == "" {
		attachment.FileName = a.FileName
	}
	return &attachment, nil
}

// do sends req and decodes a JSON response into out, turning failed
// responses into a *StoreError
func (r *RemoteStore) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &StoreError{Kind: Unknown, Err: fmt.Errorf("sending request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &StoreError{Kind: Unknown, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return &StoreError{Kind: NotFound, Err: statusErr}
		case resp.StatusCode >= 500:
			return &StoreError{Kind: ServerError, Err: statusErr}
		default:
			return &StoreError{Kind: Unknown, Err: statusErr}
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &StoreError{Kind: Unknown, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
