package entities

import "testing"

func TestRule_IsDefault(t *testing.T) {
	tests := []struct {
		name string
		rule func() *Rule[PermissionLevel]
		want bool
	}{
		{
			name: "all dimensions empty",
			rule: func() *Rule[PermissionLevel] { return &Rule[PermissionLevel]{} },
			want: true,
		},
		{
			name: "all dimensions wildcard",
			rule: func() *Rule[PermissionLevel] {
				r := &Rule[PermissionLevel]{}
				r.AddHost("*")
				r.AddUser("*")
				r.AddRole("*")
				r.AddIndex("*")
				r.AddType("*")
				return r
			},
			want: true,
		},
		{
			name: "host pattern constrains",
			rule: func() *Rule[PermissionLevel] {
				r := &Rule[PermissionLevel]{}
				r.AddHost("127.0.0.1")
				return r
			},
			want: false,
		},
		{
			name: "wildcard plus extra entry constrains",
			rule: func() *Rule[PermissionLevel] {
				r := &Rule[PermissionLevel]{}
				r.AddIndex("*")
				r.AddIndex("logs")
				return r
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule().IsDefault(); got != tt.want {
				t.Errorf("IsDefault() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRule_Complete(t *testing.T) {
	r := &Rule[PermissionLevel]{}
	if r.Complete() {
		t.Error("rule without value should not be complete")
	}
	r.SetValue(LevelReadOnly)
	if !r.Complete() {
		t.Error("rule with value should be complete")
	}
	if r.Value() != LevelReadOnly {
		t.Errorf("Value() = %v, want READONLY", r.Value())
	}
}

func TestRule_AddDimension_Invalid(t *testing.T) {
	r := &Rule[PermissionLevel]{}

	if err := r.AddHost(""); err == nil {
		t.Error("empty host pattern should be rejected")
	}
	if err := r.AddIndex("a,b"); err == nil {
		t.Error("comma-containing index name should be rejected")
	}
	if err := r.AddUser("   "); err == nil {
		t.Error("blank user name should be rejected")
	}
}

func TestRule_AddDimension_Trims(t *testing.T) {
	r := &Rule[PermissionLevel]{}
	if err := r.AddIndex("  logs  "); err != nil {
		t.Fatalf("AddIndex: %v", err)
	}
	if r.Indices[0] != "logs" {
		t.Errorf("index = %q, want trimmed %q", r.Indices[0], "logs")
	}
}

func TestRule_Equal(t *testing.T) {
	a := &Rule[PermissionLevel]{}
	a.AddHost("127.0.0.1")
	a.AddIndex("idx1")
	a.AddIndex("idx2")
	a.SetValue(LevelAll)

	// Same dimensions in different order, different value.
	b := &Rule[PermissionLevel]{}
	b.AddHost("127.0.0.1")
	b.AddIndex("idx2")
	b.AddIndex("idx1")
	b.SetValue(LevelNone)

	if !a.Equal(b) {
		t.Error("rules with identical dimension sets should be equal")
	}

	c := &Rule[PermissionLevel]{}
	c.AddHost("127.0.0.1")
	c.AddIndex("idx1")
	if a.Equal(c) {
		t.Error("rules with different index sets should not be equal")
	}
}
