package match

import "strings"

// FieldType is the structural input type reported for a field, when the
// surface exposes one.
type FieldType int

const (
	FieldTypeUnknown FieldType = iota
	FieldTypeText
	FieldTypeEmail
	FieldTypePassword
)

// Hint is an explicit semantic annotation attached to a field by the
// requesting surface. Hints outrank everything else during
// classification.
type Hint int

const (
	HintNone Hint = iota
	HintUsername
	HintEmail
	HintPassword
)

// Field is one node of the untrusted field hierarchy handed to a fill
// request. The tree shape and every attribute come from outside the
// process and must be treated as advisory at best.
type Field struct {
	ID       string
	Hint     Hint
	Type     FieldType
	Label    string // identifier or hint text, free form
	Visible  bool
	Children []*Field
}

// Source records how a role was assigned.
type Source int

const (
	SourceNone Source = iota
	SourceHint
	SourceType
	SourceKeyword
)

func (s Source) String() string {
	switch s {
	case SourceHint:
		return "hint"
	case SourceType:
		return "type"
	case SourceKeyword:
		return "keyword"
	default:
		return "none"
	}
}

// RoleAssignment binds a logical role to a concrete field reference.
type RoleAssignment struct {
	FieldID string
	Source  Source
}

// Classification maps the logical login roles to field references for
// one fill session.
type Classification struct {
	Username *RoleAssignment
	Password *RoleAssignment
}

// Complete reports whether both roles were found.
func (c Classification) Complete() bool {
	return c.Username != nil && c.Password != nil
}

// Empty reports whether no role at all was found.
func (c Classification) Empty() bool {
	return c.Username == nil && c.Password == nil
}

var (
	usernameKeywords = []string{"user", "email", "login"}
	passwordKeywords = []string{"pass"}
)

// Classify walks the field hierarchy depth first and assigns the
// username and password roles. Per field the checks run in priority
// order: explicit hint, then structural type, then keyword heuristic on
// the label text. The first field matched for a role keeps it; later
// candidates never overwrite.
//
// A field can take the username role only while visible. Some sites
// ship hidden decoy username inputs and following those would fill
// credentials into a field the user cannot see. Password fields carry
// no visibility requirement since surfaces routinely report them
// obscured.
func Classify(roots []*Field) Classification {
	var c Classification
	for _, root := range roots {
		classifyNode(root, &c)
		if c.Complete() {
			break
		}
	}
	return c
}

func classifyNode(f *Field, c *Classification) {
	if f == nil {
		return
	}
	if src, role := detectRole(f); role != roleNone {
		switch role {
		case roleUsername:
			if c.Username == nil && f.Visible {
				c.Username = &RoleAssignment{FieldID: f.ID, Source: src}
			}
		case rolePassword:
			if c.Password == nil {
				c.Password = &RoleAssignment{FieldID: f.ID, Source: src}
			}
		}
	}
	for _, child := range f.Children {
		if c.Complete() {
			return
		}
		classifyNode(child, c)
	}
}

type role int

const (
	roleNone role = iota
	roleUsername
	rolePassword
)

func detectRole(f *Field) (Source, role) {
	switch f.Hint {
	case HintUsername, HintEmail:
		return SourceHint, roleUsername
	case HintPassword:
		return SourceHint, rolePassword
	}

	switch f.Type {
	case FieldTypeEmail:
		return SourceType, roleUsername
	case FieldTypePassword:
		return SourceType, rolePassword
	}

	label := strings.ToLower(f.Label)
	if label == "" {
		return SourceNone, roleNone
	}
	for _, kw := range passwordKeywords {
		if strings.Contains(label, kw) {
			return SourceKeyword, rolePassword
		}
	}
	for _, kw := range usernameKeywords {
		if strings.Contains(label, kw) {
			return SourceKeyword, roleUsername
		}
	}
	return SourceNone, roleNone
}
