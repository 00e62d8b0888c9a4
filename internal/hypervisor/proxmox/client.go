package proxmox

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	jsoniter "github.com/json-iterator/go"

	"github.com/vmgatelabs/vmgate/internal/hypervisor"
)

// apiResponse is the envelope every Proxmox VE endpoint wraps its payload in.
type apiResponse[T any] struct {
	Data T `json:"data"`
}

// doRequest executes one API call and decodes the data envelope into out.
// Every failure leaves as a taxonomy error; raw transport and HTTP errors
// never reach the caller.
func (a *Adapter) doRequest(ctx context.Context, method string, path string, body any, out any) error {
	url := strings.TrimRight(a.cfg.BaseURL, "/") + path

	var reqBody io.Reader
	if body != nil {
		encoded, err := jsoniter.ConfigFastest.Marshal(body)
		if err != nil {
			return hypervisor.NewErrorf(hypervisor.CodeUnknownError, "encoding request body: %v", err)
		}
		reqBody = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return hypervisor.NewErrorf(hypervisor.CodeInvalidConfiguration, "building request: %v", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("PVEAPIToken=%s=%s", a.cfg.TokenID, a.cfg.Secret))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		message := readFaultMessage(resp)

		return classifyAPIFault(resp.StatusCode, message).
			WithDetail("status", resp.Status).
			WithDetail("path", path)
	}

	if out != nil {
		if err = jsoniter.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
			return hypervisor.NewErrorf(hypervisor.CodeOperationFailed, "decoding response for %s: %v", path, err)
		}
	}

	return nil
}

// readFaultMessage extracts the human-readable fault from an error response.
// Proxmox puts it either in the status line or in an errors object.
func readFaultMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if err != nil || len(raw) == 0 {
		return resp.Status
	}

	var fault struct {
		Errors  map[string]string `json:"errors"`
		Message string            `json:"message"`
	}
	if err = jsoniter.ConfigFastest.Unmarshal(raw, &fault); err == nil {
		if fault.Message != "" {
			return fault.Message
		}
		if len(fault.Errors) > 0 {
			parts := make([]string, 0, len(fault.Errors))
			for field, msg := range fault.Errors {
				parts = append(parts, field+": "+msg)
			}

			return strings.Join(parts, "; ")
		}
	}

	return string(raw)
}

// mapTransportError translates errors raised before any HTTP status exists.
func mapTransportError(err error) *hypervisor.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return hypervisor.NewErrorf(hypervisor.CodeOperationTimeout, "request timed out: %v", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return hypervisor.NewErrorf(hypervisor.CodeOperationTimeout, "request timed out: %v", err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return hypervisor.NewErrorf(hypervisor.CodeConnectionFailed, "connection refused: %v", err)
	}

	return hypervisor.NewErrorf(hypervisor.CodeConnectionFailed, "backend unreachable: %v", err)
}

// classifyAPIFault maps an HTTP status plus fault message onto the taxonomy.
// Capacity faults are recognized by message because Proxmox reports them with
// generic statuses.
func classifyAPIFault(status int, message string) *hypervisor.Error {
	if isCapacityFault(message) {
		return hypervisor.NewError(hypervisor.CodeResourceExhausted, message)
	}

	switch {
	case status == http.StatusUnauthorized:
		return hypervisor.NewError(hypervisor.CodeAuthenticationFailed, message)
	case status == http.StatusForbidden:
		return hypervisor.NewError(hypervisor.CodeAuthorizationFailed, message)
	case status == http.StatusNotFound:
		return hypervisor.NewError(hypervisor.CodeResourceNotFound, message)
	case status == http.StatusBadRequest:
		return hypervisor.NewError(hypervisor.CodeInvalidVMSpec, message)
	case status == http.StatusConflict:
		return hypervisor.NewError(hypervisor.CodeResourceAlreadyExists, message)
	default:
		return hypervisor.NewError(hypervisor.CodeOperationFailed, message)
	}
}

// isCapacityFault recognizes the phrasings Proxmox uses for exhausted
// storage or memory.
func isCapacityFault(message string) bool {
	lowered := strings.ToLower(message)

	return strings.Contains(lowered, "not enough") ||
		strings.Contains(lowered, "no space") ||
		strings.Contains(lowered, "insufficient")
}

// newHTTPClient builds the transport honoring the configured timeout and,
// for lab setups with self-signed certificates, the insecure flag.
func newHTTPClient(cfg Config) *http.Client {
	client := &http.Client{Timeout: cfg.Timeout}

	if cfg.InsecureSkipVerify {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // explicit opt-in for lab certificates
		}
	}

	return client
}
