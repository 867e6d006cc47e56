package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Organization struct {
	ID   string `yaml:"id"`
	Slug string `yaml:"slug"`
	Name string `yaml:"name"`
}

type organizationsFile struct {
	Version       int            `yaml:"version"`
	Organizations []Organization `yaml:"organizations"`
}

func loadOrganizations() (map[string]Organization, error) {
	path := os.Getenv("ORGANIZATIONS_PATH")
	if path == "" {
		p, err := defaultOrganizationsPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f organizationsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if f.Version != 1 {
		return nil, errors.New("organizations: unsupported version")
	}
	if len(f.Organizations) == 0 {
		return nil, errors.New("organizations: empty")
	}

	m := make(map[string]Organization, len(f.Organizations))
	for _, o := range f.Organizations {
		if o.ID == "" || o.Slug == "" {
			return nil, errors.New("organizations: invalid organization")
		}
		m[o.ID] = o
	}
	return m, nil
}

func defaultOrganizationsPath() (string, error) {
	path := "config/organizations.yaml"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: organizations config not found")
}

type organizationContextKey struct{}

func withOrganization(ctx context.Context, o Organization) context.Context {
	return context.WithValue(ctx, organizationContextKey{}, o)
}

func currentOrganization(ctx context.Context) (Organization, bool) {
	v := ctx.Value(organizationContextKey{})
	if v == nil {
		return Organization{}, false
	}
	o, ok := v.(Organization)
	return o, ok
}

// OrganizationResolver maps the X-Org-ID request header to a registered
// organization. The registry is yaml config; requests without the header
// resolve to the zero Organization (platform scope).
type OrganizationResolver interface {
	ResolveOrganization(ctx context.Context, id string) (Organization, bool, error)
}

type staticOrganizationResolver struct {
	orgs map[string]Organization
}

func (r staticOrganizationResolver) ResolveOrganization(_ context.Context, id string) (Organization, bool, error) {
	o, ok := r.orgs[strings.TrimSpace(id)]
	return o, ok, nil
}
