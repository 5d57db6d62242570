package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

var ErrNotFound = errors.New("secret not found")

type Provider interface {
	Get(ctx context.Context, name string) (string, error)
}

// Lookup returns the secret or "" when it cannot be read. Failures are
// logged, never returned: a missing key surfaces later as a rejected
// request.
func Lookup(ctx context.Context, p Provider, name string) string {
	if p == nil || name == "" {
		return ""
	}
	v, err := p.Get(ctx, name)
	if err != nil {
		slog.Warn("failed to read secret", "secret", name, "error", err)
		return ""
	}
	return v
}

// Env reads secrets from environment variables.
type Env struct{}

func (Env) Get(_ context.Context, name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return v, nil
}

// GCP reads the latest version of secrets in one Secret Manager project.
type GCP struct {
	client  *secretmanager.Client
	project string
}

func NewGCP(ctx context.Context, project, credentialsFile string) (*GCP, error) {
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating secret manager client: %w", err)
	}
	return &GCP{client: client, project: project}, nil
}

func (g *GCP) Get(ctx context.Context, name string) (string, error) {
	resp, err := g.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: VersionName(g.project, name),
	})
	if err != nil {
		return "", fmt.Errorf("accessing secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(resp.GetPayload().GetData())), nil
}

func (g *GCP) Close() error {
	return g.client.Close()
}

// VersionName expands a short secret name to its latest version resource.
// Names already starting with "projects/" are used as given, with
// "/versions/latest" appended when no version is named.
func VersionName(project, name string) string {
	if strings.HasPrefix(name, "projects/") {
		if strings.Contains(name, "/versions/") {
			return name
		}
		return name + "/versions/latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", project, name)
}

// Chain tries each provider in turn and returns the first value found.
type Chain []Provider

func (c Chain) Get(ctx context.Context, name string) (string, error) {
	var errs []error
	for _, p := range c {
		v, err := p.Get(ctx, name)
		if err == nil {
			return v, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return "", errors.Join(errs...)
}
