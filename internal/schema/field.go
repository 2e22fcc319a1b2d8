package schema

import (
	"regexp"
	"strings"

	"github.com/shoaldb/shoal/internal/sherr"
)

// FieldType is the portable type tag of a field.
type FieldType string

// Supported field types.
const (
	TypeText     FieldType = "text"
	TypeNumber   FieldType = "number"
	TypeBool     FieldType = "bool"
	TypeDate     FieldType = "date"
	TypeSelect   FieldType = "select"
	TypeRelation FieldType = "relation"
	TypeJSON     FieldType = "json"
	TypeAutodate FieldType = "autodate"
	TypeURL      FieldType = "url"
)

// typeSpec describes the shape of a field type: which options it accepts
// and how they are validated.
type typeSpec struct {
	name     FieldType
	validate func(f *Field) error
}

// typeRegistry holds all known field types indexed by type tag.
var typeRegistry = map[FieldType]*typeSpec{}

func registerType(t *typeSpec) {
	if _, exists := typeRegistry[t.name]; exists {
		panic("field type already registered: " + string(t.name))
	}
	typeRegistry[t.name] = t
}

// KnownType reports whether the type tag is registered.
func KnownType(t FieldType) bool {
	return typeRegistry[t] != nil
}

// Field is a typed attribute of a Collection.
//
// Identity is carried by ID, which is assigned at creation and never
// changes; Name is the mutable, human-facing handle. Operations that must
// survive renames (removal in a later changeset, index rewrites) should
// address the field by ID.
type Field struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        FieldType    `json:"type"`
	Required    bool         `json:"required"`
	Presentable bool         `json:"presentable"`
	Options     FieldOptions `json:"options"`
}

// FieldOptions holds type-specific constraint options. Only the subset
// relevant to the field's type is meaningful; the rest stays zero.
type FieldOptions struct {
	// number: numeric range; text: min/max length.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`

	// number: reject non-integer values.
	OnlyInt bool `json:"onlyInt,omitempty"`

	// text, url: regex constraint on stored values.
	Pattern string `json:"pattern,omitempty"`

	// select: permitted values and how many may be chosen at once.
	Values    []string `json:"values,omitempty"`
	MaxSelect int      `json:"maxSelect,omitempty"`

	// relation: resolved target collection identifier, cardinality and
	// explicit cascade behaviour. CollectionID must already be resolved
	// by the time the field is compiled.
	CollectionID  string `json:"collectionId,omitempty"`
	CascadeDelete bool   `json:"cascadeDelete,omitempty"`

	// autodate: which lifecycle events stamp the field.
	OnCreate bool `json:"onCreate,omitempty"`
	OnUpdate bool `json:"onUpdate,omitempty"`

	// url: optional domain allow/deny lists.
	OnlyDomains   []string `json:"onlyDomains,omitempty"`
	ExceptDomains []string `json:"exceptDomains,omitempty"`
}

// validFieldNamePattern matches safe field names (lowercase snake_case).
var validFieldNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidateName checks that a field or collection name is a safe identifier.
func ValidateName(name string) error {
	if !validFieldNamePattern.MatchString(name) {
		return sherr.Newf(sherr.ErrDefinition,
			"invalid name %q; must match [a-z_][a-z0-9_]*", name)
	}
	return nil
}

// Validate checks that the field declaration is well-formed for its type.
// It does not resolve relation targets; that is the resolver's job.
func (f *Field) Validate() error {
	if f.ID == "" {
		return sherr.New(sherr.ErrDefinition, "field id is required")
	}
	if f.Name == "" {
		return sherr.New(sherr.ErrDefinition, "field name is required")
	}
	if err := ValidateName(f.Name); err != nil {
		return err
	}
	spec := typeRegistry[f.Type]
	if spec == nil {
		return sherr.New(sherr.ErrInvalidType, "unknown field type").
			WithField(f.Name).
			With("type", string(f.Type))
	}
	if spec.validate != nil {
		if err := spec.validate(f); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of the field.
func (f *Field) Clone() *Field {
	dup := *f
	dup.Options = f.Options.clone()
	return &dup
}

// Equal reports whether two field declarations are identical, including
// all type-specific options. Used to verify round-trip restoration.
func (f *Field) Equal(other *Field) bool {
	if f == nil || other == nil {
		return f == other
	}
	if f.ID != other.ID || f.Name != other.Name || f.Type != other.Type ||
		f.Required != other.Required || f.Presentable != other.Presentable {
		return false
	}
	return f.Options.equal(&other.Options)
}

func (o FieldOptions) clone() FieldOptions {
	dup := o
	if o.Min != nil {
		v := *o.Min
		dup.Min = &v
	}
	if o.Max != nil {
		v := *o.Max
		dup.Max = &v
	}
	dup.Values = append([]string(nil), o.Values...)
	dup.OnlyDomains = append([]string(nil), o.OnlyDomains...)
	dup.ExceptDomains = append([]string(nil), o.ExceptDomains...)
	return dup
}

func (o *FieldOptions) equal(other *FieldOptions) bool {
	if !floatPtrEqual(o.Min, other.Min) || !floatPtrEqual(o.Max, other.Max) {
		return false
	}
	return o.OnlyInt == other.OnlyInt &&
		o.Pattern == other.Pattern &&
		stringsEqual(o.Values, other.Values) &&
		o.MaxSelect == other.MaxSelect &&
		o.CollectionID == other.CollectionID &&
		o.CascadeDelete == other.CascadeDelete &&
		o.OnCreate == other.OnCreate &&
		o.OnUpdate == other.OnUpdate &&
		stringsEqual(o.OnlyDomains, other.OnlyDomains) &&
		stringsEqual(o.ExceptDomains, other.ExceptDomains)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func init() {
	registerType(&typeSpec{
		name: TypeText,
		validate: func(f *Field) error {
			o := &f.Options
			if o.Min != nil && *o.Min < 0 {
				return sherr.New(sherr.ErrInvalidOption, "text min length cannot be negative").
					WithField(f.Name)
			}
			if o.Min != nil && o.Max != nil && *o.Min > *o.Max {
				return sherr.New(sherr.ErrInvalidOption, "min cannot be greater than max").
					WithField(f.Name).
					With("min", *o.Min).
					With("max", *o.Max)
			}
			if o.Pattern != "" {
				if _, err := regexp.Compile(o.Pattern); err != nil {
					return sherr.Wrap(sherr.ErrInvalidOption, err, "invalid text pattern").
						WithField(f.Name)
				}
			}
			return nil
		},
	})

	registerType(&typeSpec{
		name: TypeNumber,
		validate: func(f *Field) error {
			o := &f.Options
			if o.Min != nil && o.Max != nil && *o.Min > *o.Max {
				return sherr.New(sherr.ErrInvalidOption, "min cannot be greater than max").
					WithField(f.Name)
			}
			if o.OnlyInt {
				if o.Min != nil && *o.Min != float64(int64(*o.Min)) {
					return sherr.New(sherr.ErrInvalidOption, "onlyInt number has non-integer min").
						WithField(f.Name).
						With("min", *o.Min)
				}
				if o.Max != nil && *o.Max != float64(int64(*o.Max)) {
					return sherr.New(sherr.ErrInvalidOption, "onlyInt number has non-integer max").
						WithField(f.Name).
						With("max", *o.Max)
				}
			}
			return nil
		},
	})

	registerType(&typeSpec{name: TypeBool})

	registerType(&typeSpec{name: TypeDate})

	registerType(&typeSpec{
		name: TypeSelect,
		validate: func(f *Field) error {
			o := &f.Options
			if len(o.Values) == 0 {
				return sherr.New(sherr.ErrInvalidOption, "select field requires at least one value").
					WithField(f.Name)
			}
			seen := make(map[string]bool, len(o.Values))
			for _, v := range o.Values {
				if strings.TrimSpace(v) == "" {
					return sherr.New(sherr.ErrInvalidOption, "select value cannot be empty").
						WithField(f.Name)
				}
				if seen[v] {
					return sherr.New(sherr.ErrInvalidOption, "duplicate select value").
						WithField(f.Name).
						With("value", v)
				}
				seen[v] = true
			}
			if o.MaxSelect < 0 {
				return sherr.New(sherr.ErrInvalidOption, "maxSelect cannot be negative").
					WithField(f.Name)
			}
			if o.MaxSelect > len(o.Values) {
				return sherr.New(sherr.ErrInvalidOption, "maxSelect exceeds the number of values").
					WithField(f.Name).
					With("maxSelect", o.MaxSelect).
					With("values", len(o.Values))
			}
			return nil
		},
	})

	registerType(&typeSpec{
		name: TypeRelation,
		validate: func(f *Field) error {
			o := &f.Options
			if o.CollectionID == "" {
				return sherr.New(sherr.ErrInvalidOption, "relation field requires a resolved target collection id").
					WithField(f.Name).
					WithHelp("resolve the target by identifier or name before compiling the field")
			}
			if o.MaxSelect < 0 {
				return sherr.New(sherr.ErrInvalidOption, "maxSelect cannot be negative").
					WithField(f.Name)
			}
			return nil
		},
	})

	registerType(&typeSpec{name: TypeJSON})

	registerType(&typeSpec{
		name: TypeAutodate,
		validate: func(f *Field) error {
			o := &f.Options
			if !o.OnCreate && !o.OnUpdate {
				return sherr.New(sherr.ErrInvalidOption, "autodate field must stamp on create, update, or both").
					WithField(f.Name)
			}
			return nil
		},
	})

	registerType(&typeSpec{
		name: TypeURL,
		validate: func(f *Field) error {
			o := &f.Options
			for _, d := range o.OnlyDomains {
				for _, x := range o.ExceptDomains {
					if d == x {
						return sherr.New(sherr.ErrInvalidOption, "domain listed in both onlyDomains and exceptDomains").
							WithField(f.Name).
							With("domain", d)
					}
				}
			}
			return nil
		},
	})
}
