// Package tables builds Azure Table Storage clients for the table-backed
// stores.
package tables

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

// Service wraps a table service client.
type Service struct {
	svc *aztables.ServiceClient
}

// New connects using an account connection string. Retries cover transient
// transport failures only; writes are never replayed by the stores.
func New(connStr string) (*Service, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: 15 * time.Second,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Service{svc: svc}, nil
}

// Table returns a client for the named table.
func (s *Service) Table(name string) *aztables.Client {
	return s.svc.NewClient(name)
}

// Ensure creates the named tables, ignoring ones that already exist.
func (s *Service) Ensure(ctx context.Context, names ...string) error {
	for _, name := range names {
		if _, err := s.svc.CreateTable(ctx, name, nil); err != nil && !IsConflict(err) {
			return err
		}
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the table service.
func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the table service.
func IsConflict(err error) bool {
	return statusCode(err) == http.StatusConflict
}

func statusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// Quote escapes a value for use inside a single-quoted OData literal.
func Quote(v string) string {
	out := make([]byte, 0, len(v)+2)
	out = append(out, '\'')
	for i := 0; i < len(v); i++ {
		if v[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, v[i])
	}
	return string(append(out, '\''))
}
