package secrets

import (
	"context"
	"errors"
	"testing"
)

type mapProvider map[string]string

func (m mapProvider) Get(_ context.Context, name string) (string, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	return "", errors.New("permission denied")
}

func TestVersionName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"anthropic-key":                         "projects/p1/secrets/anthropic-key/versions/latest",
		"projects/p2/secrets/k":                 "projects/p2/secrets/k/versions/latest",
		"projects/p2/secrets/k/versions/3":      "projects/p2/secrets/k/versions/3",
		"projects/p2/secrets/k/versions/latest": "projects/p2/secrets/k/versions/latest",
	}
	for in, want := range cases {
		if got := VersionName("p1", in); got != want {
			t.Errorf("VersionName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLookup_DegradesToEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := mapProvider{"present": "value"}
	if got := Lookup(ctx, p, "present"); got != "value" {
		t.Errorf("Lookup(present) = %q", got)
	}
	if got := Lookup(ctx, p, "absent"); got != "" {
		t.Errorf("Lookup(absent) = %q, want empty", got)
	}
	if got := Lookup(ctx, nil, "present"); got != "" {
		t.Errorf("Lookup with nil provider = %q, want empty", got)
	}
}

func TestEnv(t *testing.T) {
	t.Setenv("MDTOML_TEST_SECRET", "s3cr3t")
	t.Setenv("MDTOML_TEST_EMPTY", "")

	ctx := context.Background()
	if v, err := (Env{}).Get(ctx, "MDTOML_TEST_SECRET"); err != nil || v != "s3cr3t" {
		t.Errorf("Get = %q, %v", v, err)
	}
	if _, err := (Env{}).Get(ctx, "MDTOML_TEST_EMPTY"); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty variable should be not found, got %v", err)
	}
}

func TestChain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := Chain{mapProvider{}, mapProvider{"k": "second"}}
	if v, err := c.Get(ctx, "k"); err != nil || v != "second" {
		t.Errorf("Get = %q, %v", v, err)
	}
	if _, err := c.Get(ctx, "missing"); err == nil {
		t.Error("expected error when no provider has the secret")
	}
	if _, err := (Chain{}).Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty chain should report ErrNotFound, got %v", err)
	}
}
