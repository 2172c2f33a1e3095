package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/takenaka/sekimori/internal/entities"
	"github.com/takenaka/sekimori/internal/repositories"
	"github.com/takenaka/sekimori/internal/services/fieldsec"
)

// Policy document sections and well-known ids inside the policy index.
const (
	SectionActionPath    = "actionpathfilter"
	SectionDataSecurity  = "dlspermissions"
	SectionFieldResponse = "fieldresponsefilter"

	// DefaultID names the site-wide fallback document of a section.
	DefaultID = "default"
)

// PolicyService resolves the policy documents the decision point needs.
// It adds no caching on purpose: each request must see the policy as
// currently stored.
type PolicyService struct {
	repo repositories.PolicyRepository
}

// NewPolicyService creates a PolicyService backed by the given repository.
func NewPolicyService(repo repositories.PolicyRepository) *PolicyService {
	return &PolicyService{repo: repo}
}

// LevelPolicy returns the permission-level policy document. A site without
// one has no authorization layer at all, so absence is an error.
func (s *PolicyService) LevelPolicy(ctx context.Context) ([]byte, error) {
	doc, err := s.repo.GetPolicy(ctx, SectionActionPath, SectionActionPath)
	if err != nil {
		return nil, fmt.Errorf("loading permission-level policy: %w", err)
	}
	return doc, nil
}

// TokenPolicy returns the data-security token policy document, or nil when
// the site has none configured.
func (s *PolicyService) TokenPolicy(ctx context.Context) ([]byte, error) {
	return s.optionalPolicy(ctx, SectionDataSecurity, SectionDataSecurity)
}

// FieldPolicy returns the response field-restriction policy document, or
// nil when the site has none configured.
func (s *PolicyService) FieldPolicy(ctx context.Context) ([]byte, error) {
	return s.optionalPolicy(ctx, SectionFieldResponse, SectionFieldResponse)
}

func (s *PolicyService) optionalPolicy(ctx context.Context, section, id string) ([]byte, error) {
	doc, err := s.repo.GetPolicy(ctx, section, id)
	if errors.Is(err, repositories.ErrPolicyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s policy: %w", section, err)
	}
	return doc, nil
}

// DocumentPermissions resolves the field permissions governing one stored
// document: the document's own permission payload first, then the site-wide
// default document, and finally the universal-access sentinel when neither
// exists. With no permission payload anywhere there is nothing to protect.
func (s *PolicyService) DocumentPermissions(ctx context.Context, index, typ, id string) ([]*entities.FieldPermission, error) {
	doc, err := s.repo.GetDocument(ctx, index, typ, id)
	if err != nil && !errors.Is(err, repositories.ErrPolicyNotFound) {
		return nil, fmt.Errorf("loading document %s/%s/%s: %w", index, typ, id, err)
	}

	if err == nil {
		perms, perr := fieldsec.ParseStored(doc)
		if perr == nil {
			return perms, nil
		}
		if !errors.Is(perr, fieldsec.ErrNoPermissions) {
			return nil, perr
		}
	}

	return s.DefaultPermissions(ctx)
}

// DefaultPermissions resolves the site-wide default field permissions, or
// the universal-access sentinel when the site configured none.
func (s *PolicyService) DefaultPermissions(ctx context.Context) ([]*entities.FieldPermission, error) {
	fallback, err := s.repo.GetPolicy(ctx, SectionDataSecurity, DefaultID)
	if errors.Is(err, repositories.ErrPolicyNotFound) {
		return []*entities.FieldPermission{entities.AllPermission()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading default field permissions: %w", err)
	}
	return fieldsec.ParseStored(fallback)
}
