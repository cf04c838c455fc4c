package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"imghost/pkg/api"
)

// Whoami returns the principal the server sees for the current credential.
func (c *Client) Whoami(ctx context.Context) (*api.Principal, error) {
	var out api.Principal
	if err := c.getJSON(ctx, "/api/auth", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListImages fetches one page of images under folder.
func (c *Client) ListImages(ctx context.Context, folder, cursor string, limit int) (*api.ListResponse, error) {
	q := url.Values{}
	if folder != "" {
		q.Set("folder", folder)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out api.ListResponse
	if err := c.getJSON(ctx, "/api/images", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Folders lists every folder on the server.
func (c *Client) Folders(ctx context.Context) (*api.FoldersResponse, error) {
	var out api.FoldersResponse
	if err := c.getJSON(ctx, "/api/folders", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches usage statistics, optionally scoped to folder.
func (c *Client) Stats(ctx context.Context, folder string) (*api.StatsResponse, error) {
	q := url.Values{}
	if folder != "" {
		q.Set("folder", folder)
	}
	var out api.StatsResponse
	if err := c.getJSON(ctx, "/api/stats", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateFolder creates name under parent.
func (c *Client) CreateFolder(ctx context.Context, name, parent string) (*api.CreateFolderResponse, error) {
	var out api.CreateFolderResponse
	err := c.sendJSON(ctx, http.MethodPost, "/api/folders", api.CreateFolderRequest{Name: name, Parent: parent}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteFolder removes a folder and everything in it. A partial deletion is
// not an error; check the Failures of the response.
func (c *Client) DeleteFolder(ctx context.Context, path string) (*api.DeleteFolderResponse, error) {
	var out api.DeleteFolderResponse
	err := c.sendJSON(ctx, http.MethodDelete, "/api/folders", api.DeleteFolderRequest{Path: path}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteImage removes a single image by key.
func (c *Client) DeleteImage(ctx context.Context, key string) (*api.DeleteImageResponse, error) {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/images", url.Values{"key": {key}}, nil)
	if err != nil {
		return nil, err
	}
	var out api.DeleteImageResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadKey asks the server for a storage key without uploading.
func (c *Client) UploadKey(ctx context.Context, name, contentType, folder string) (*api.UploadKeyResponse, error) {
	var out api.UploadKeyResponse
	err := c.sendJSON(ctx, http.MethodPost, "/api/upload-key", api.UploadKeyRequest{
		Name:        name,
		ContentType: contentType,
		Folder:      folder,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends a local file into folder.
func (c *Client) Upload(ctx context.Context, filePath, folder string) (*api.UploadResponse, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, err
	}
	if _, err = io.Copy(part, file); err != nil {
		return nil, err
	}
	if folder != "" {
		if err = writer.WriteField("folder", folder); err != nil {
			return nil, err
		}
	}
	if err = writer.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/images", nil, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out api.UploadResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
