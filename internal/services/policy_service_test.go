package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/takenaka/sekimori/internal/repositories"
)

// fakeRepo serves policy documents from memory, keyed "section/id" for
// policies and "index/type/id" for documents.
type fakeRepo struct {
	policies  map[string][]byte
	documents map[string][]byte
}

func (f *fakeRepo) GetPolicy(_ context.Context, section, id string) ([]byte, error) {
	doc, ok := f.policies[section+"/"+id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", repositories.ErrPolicyNotFound, section, id)
	}
	return doc, nil
}

func (f *fakeRepo) GetDocument(_ context.Context, index, typ, id string) ([]byte, error) {
	doc, ok := f.documents[index+"/"+typ+"/"+id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s/%s", repositories.ErrPolicyNotFound, index, typ, id)
	}
	return doc, nil
}

func TestPolicyService_LevelPolicyRequired(t *testing.T) {
	svc := NewPolicyService(&fakeRepo{policies: map[string][]byte{}})

	if _, err := svc.LevelPolicy(context.Background()); err == nil {
		t.Error("missing level policy should be an error")
	}

	svc = NewPolicyService(&fakeRepo{policies: map[string][]byte{
		"actionpathfilter/actionpathfilter": []byte(`[]`),
	}})
	doc, err := svc.LevelPolicy(context.Background())
	if err != nil {
		t.Fatalf("LevelPolicy: %v", err)
	}
	if string(doc) != `[]` {
		t.Errorf("doc = %s", doc)
	}
}

func TestPolicyService_TokenPolicyOptional(t *testing.T) {
	svc := NewPolicyService(&fakeRepo{policies: map[string][]byte{}})

	doc, err := svc.TokenPolicy(context.Background())
	if err != nil {
		t.Fatalf("TokenPolicy: %v", err)
	}
	if doc != nil {
		t.Errorf("doc = %s, want nil for unconfigured token policy", doc)
	}
}

func TestPolicyService_DocumentPermissions(t *testing.T) {
	repo := &fakeRepo{
		policies: map[string][]byte{
			"dlspermissions/default": []byte(`{"dlspermissions": {"name": {"read": ["*"]}}}`),
		},
		documents: map[string][]byte{
			"staff/person/1": []byte(`{"dlspermissions": {"email": {"read": ["hr"]}}}`),
			"staff/person/2": []byte(`{"name": "no payload here"}`),
		},
	}
	svc := NewPolicyService(repo)

	// Document's own payload wins.
	perms, err := svc.DocumentPermissions(context.Background(), "staff", "person", "1")
	if err != nil {
		t.Fatalf("DocumentPermissions: %v", err)
	}
	if len(perms) != 1 || perms[0].Field != "email" {
		t.Errorf("perms = %+v, want document payload", perms)
	}

	// Payload-free document falls back to the site default.
	perms, err = svc.DocumentPermissions(context.Background(), "staff", "person", "2")
	if err != nil {
		t.Fatalf("DocumentPermissions: %v", err)
	}
	if len(perms) != 1 || perms[0].Field != "name" {
		t.Errorf("perms = %+v, want site default", perms)
	}

	// Nothing anywhere: universal sentinel, never a denial.
	repo.policies = map[string][]byte{}
	perms, err = svc.DocumentPermissions(context.Background(), "staff", "person", "3")
	if err != nil {
		t.Fatalf("DocumentPermissions: %v", err)
	}
	if len(perms) != 1 || !perms[0].IsDefault() {
		t.Errorf("perms = %+v, want universal sentinel", perms)
	}
}
