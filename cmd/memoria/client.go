package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Client is a thin wrapper over memoria's HTTP surface (spec.md §6).
type Client struct {
	BaseURL         string
	AccessKeyHeader string
	AccessKey       string

	http http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.http.Timeout == 0 {
		c.http.Timeout = 60 * time.Second
	}
	return &c.http
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if c.AccessKeyHeader != "" {
		req.Header.Set(c.AccessKeyHeader, c.AccessKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("memoria server: %s: %s", resp.Status, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Upload posts files to POST /upload.
func (c *Client) Upload(ctx context.Context, index, documentID string, tags, steps, files []string) (map[string]string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("index", index); err != nil {
		return nil, err
	}
	if documentID != "" {
		if err := mw.WriteField("documentId", documentID); err != nil {
			return nil, err
		}
	}
	for _, tag := range tags {
		if err := mw.WriteField("tags", tag); err != nil {
			return nil, err
		}
	}
	for _, step := range steps {
		if err := mw.WriteField("steps", step); err != nil {
			return nil, err
		}
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", nil, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out map[string]string
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status calls GET /upload-status.
func (c *Client) Status(ctx context.Context, index, documentID string) (map[string]interface{}, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/upload-status", url.Values{
		"index": {index}, "documentId": {documentID},
	}, nil)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Indexes calls GET /indexes.
func (c *Client) Indexes(ctx context.Context) (map[string]interface{}, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/indexes", nil, nil)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteIndex calls DELETE /indexes?index=.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/indexes", url.Values{"index": {index}}, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// DeleteDocument calls DELETE /documents?index=&documentId=.
func (c *Client) DeleteDocument(ctx context.Context, index, documentID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/documents", url.Values{
		"index": {index}, "documentId": {documentID},
	}, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Ask calls POST /ask.
func (c *Client) Ask(ctx context.Context, index, question string, minRelevance float64) (map[string]interface{}, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"index": index, "question": question, "minRelevance": minRelevance,
	})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/ask", nil, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out map[string]interface{}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Search calls POST /search.
func (c *Client) Search(ctx context.Context, index, query string, minRelevance float64, limit int) (map[string]interface{}, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"index": index, "query": query, "minRelevance": minRelevance, "limit": limit,
	})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/search", nil, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out map[string]interface{}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}
