package tools

import (
	"fmt"
	"sort"
)

// Role names a class of client. The set is closed: unknown roles see nothing.
type Role string

const (
	RoleTopicSelector Role = "topic_selector"
	RoleResearcher    Role = "researcher"
)

// FilterContext describes the client on the other end of a session
type FilterContext struct {
	Role  Role   `json:"role,omitempty"`
	Label string `json:"label,omitempty"`
}

// Filter decides which tools a client may see and call.
// Allow must be a pure function of its inputs.
type Filter interface {
	Allow(fc FilterContext, tool ToolDescriptor) bool
}

// FilterFunc adapts a plain function to Filter
type FilterFunc func(fc FilterContext, tool ToolDescriptor) bool

// Allow implements Filter
func (f FilterFunc) Allow(fc FilterContext, tool ToolDescriptor) bool {
	return f(fc, tool)
}

// AllowAll exposes every registered tool. It is never applied implicitly.
func AllowAll() Filter {
	return FilterFunc(func(FilterContext, ToolDescriptor) bool { return true })
}

// AllOf admits a tool only when every filter does
func AllOf(filters ...Filter) Filter {
	return FilterFunc(func(fc FilterContext, tool ToolDescriptor) bool {
		for _, f := range filters {
			if !f.Allow(fc, tool) {
				return false
			}
		}
		return true
	})
}

type allowList map[string]struct{}

// AllowList exposes only the named tools
func AllowList(names ...string) Filter {
	set := make(allowList, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func (a allowList) Allow(_ FilterContext, tool ToolDescriptor) bool {
	_, ok := a[tool.Name]
	return ok
}

// RolePolicy maps each role to the tools it may use
type RolePolicy map[Role][]string

// DefaultRolePolicy is the built-in policy for the two pipeline stages
func DefaultRolePolicy() RolePolicy {
	return RolePolicy{
		RoleTopicSelector: {
			"select_topic_from_backlog",
			"update_topic_status",
			"query_topics_by_status",
		},
		RoleResearcher: {
			"web_search",
			"search_news",
			"extract_content",
			"create_research_page",
			"update_topic_status",
		},
	}
}

type roleFilter map[Role]allowList

// RoleFilter filters by the caller's role using DefaultRolePolicy
func RoleFilter() Filter {
	return NewRoleFilter(DefaultRolePolicy())
}

// NewRoleFilter filters by the caller's role. Roles missing from policy,
// including the empty role, are denied everything.
func NewRoleFilter(policy RolePolicy) Filter {
	f := make(roleFilter, len(policy))
	for role, names := range policy {
		f[role] = AllowList(names...).(allowList)
	}
	return f
}

func (f roleFilter) Allow(fc FilterContext, tool ToolDescriptor) bool {
	allowed, ok := f[fc.Role]
	if !ok {
		return false
	}
	return allowed.Allow(fc, tool)
}

// Roles lists the built-in roles in a stable order
func Roles() []Role {
	policy := DefaultRolePolicy()
	roles := make([]Role, 0, len(policy))
	for role := range policy {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// ParseRole accepts only the built-in roles
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if _, ok := DefaultRolePolicy()[role]; !ok {
		return "", fmt.Errorf("unknown role %q (want one of %v)", s, Roles())
	}
	return role, nil
}

// FilterTools returns the descriptors visible through filter, preserving order
func FilterTools(filter Filter, fc FilterContext, descriptors []ToolDescriptor) []ToolDescriptor {
	visible := make([]ToolDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if filter.Allow(fc, d) {
			visible = append(visible, d)
		}
	}
	return visible
}
